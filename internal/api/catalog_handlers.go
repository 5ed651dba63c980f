package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/cewkb/kbsearch/internal/sse"
)

func (s *Server) registerCatalogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCatalog",
		Method:      http.MethodGet,
		Path:        "/api/v1/catalog",
		Summary:     "Get catalog status",
		Description: "Describes the snapshot currently being served",
		Tags:        []string{"Catalog"},
	}, s.handleGetCatalog)

	huma.Register(s.api, huma.Operation{
		OperationID: "refreshCatalog",
		Method:      http.MethodPost,
		Path:        "/api/v1/catalog/refresh",
		Summary:     "Refresh catalog",
		Description: "Reloads the collection from its sources. Rate limited per client.",
		Tags:        []string{"Catalog"},
	}, s.handleRefreshCatalog)

	// Catalog events are plain SSE owned by the manager, outside huma.
	if s.services.Events != nil {
		s.router.Method(http.MethodGet, "/api/v1/events", sse.NewHandler(s.services.Events, s.logger))
	}
}

// CatalogOutput wraps the catalog status for Huma.
type CatalogOutput struct {
	Body CatalogStatus
}

// RefreshResponse reports the outcome of a manual refresh.
type RefreshResponse struct {
	CatalogStatus
	Error string `json:"error,omitempty" doc:"Load failure; the previous snapshot is still served"`
}

// RefreshOutput wraps the refresh response for Huma.
type RefreshOutput struct {
	Body RefreshResponse
}

func (s *Server) handleGetCatalog(_ context.Context, _ *struct{}) (*CatalogOutput, error) {
	return &CatalogOutput{Body: catalogStatus(s.services.Catalog.Current())}, nil
}

func (s *Server) handleRefreshCatalog(ctx context.Context, _ *struct{}) (*RefreshOutput, error) {
	if s.services.RefreshLimiter != nil {
		if ok, retry := s.services.RefreshLimiter.Reserve(clientIP(ctx)); !ok {
			return nil, rateLimited(retry)
		}
	}

	snap, err := s.services.Catalog.Refresh(ctx)
	if snap == nil {
		return nil, err
	}

	resp := RefreshResponse{CatalogStatus: catalogStatus(snap)}
	if err != nil {
		s.logger.Warn("manual refresh kept previous catalog", "error", err)
		resp.Error = err.Error()
	}
	return &RefreshOutput{Body: resp}, nil
}
