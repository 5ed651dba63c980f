package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/cewkb/kbsearch/internal/catalog"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service health with catalog statistics",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// CatalogStatus describes the current catalog snapshot.
type CatalogStatus struct {
	Loaded       bool       `json:"loaded" doc:"Whether any load has completed"`
	Version      uint64     `json:"version" doc:"Snapshot version, bumped on every replacement"`
	Source       string     `json:"source,omitempty" doc:"Source that produced the snapshot"`
	Articles     int        `json:"articles" doc:"Number of articles"`
	Tags         int        `json:"tags" doc:"Number of tags"`
	Indexed      int        `json:"indexed" doc:"Documents in the search index"`
	UsedFallback bool       `json:"used_fallback" doc:"Whether the primary source failed"`
	LoadedAt     *time.Time `json:"loaded_at,omitempty" doc:"When the snapshot was installed"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status       string        `json:"status" doc:"Overall status: healthy or degraded"`
	Catalog      CatalogStatus `json:"catalog"`
	Sessions     int           `json:"sessions" doc:"Live query sessions"`
	EventClients int           `json:"event_clients" doc:"Connected catalog event streams"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	resp := HealthResponse{
		Status:  "healthy",
		Catalog: catalogStatus(s.services.Catalog.Current()),
	}
	if s.services.Sessions != nil {
		resp.Sessions = s.services.Sessions.Len()
	}
	if s.services.Events != nil {
		resp.EventClients = s.services.Events.ClientCount()
	}

	// Serving fallback or empty data is degraded, never down: clients still
	// get a well-formed "no data" view.
	if !resp.Catalog.Loaded || resp.Catalog.UsedFallback || resp.Catalog.Articles == 0 {
		resp.Status = "degraded"
	}
	return &HealthOutput{Body: resp}, nil
}

func catalogStatus(snap *catalog.Snapshot) CatalogStatus {
	if snap == nil {
		return CatalogStatus{}
	}
	loadedAt := snap.LoadedAt
	return CatalogStatus{
		Loaded:       true,
		Version:      snap.Version,
		Source:       snap.Source,
		Articles:     len(snap.Collection.Articles),
		Tags:         len(snap.Collection.Tags),
		Indexed:      snap.Index.Len(),
		UsedFallback: snap.UsedFallback,
		LoadedAt:     &loadedAt,
	}
}
