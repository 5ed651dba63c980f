package api

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/cewkb/kbsearch/internal/browse"
	"github.com/cewkb/kbsearch/internal/catalog"
	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/dto"
	"github.com/cewkb/kbsearch/internal/errors"
)

func (s *Server) registerArticleRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchArticles",
		Method:      http.MethodGet,
		Path:        "/api/v1/articles/search",
		Summary:     "Search articles",
		Description: "Runs search, filter, sort and pagination once over the current catalog",
		Tags:        []string{"Articles"},
	}, s.handleSearchArticles)

	huma.Register(s.api, huma.Operation{
		OperationID: "getArticle",
		Method:      http.MethodGet,
		Path:        "/api/v1/articles/{id}",
		Summary:     "Get article",
		Description: "Returns an article with resolved tags and markdown bodies",
		Tags:        []string{"Articles"},
	}, s.handleGetArticle)

	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags",
		Summary:     "List tags",
		Description: "Returns every tag sorted by name, with article counts",
		Tags:        []string{"Tags"},
	}, s.handleListTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "listPlatforms",
		Method:      http.MethodGet,
		Path:        "/api/v1/platforms",
		Summary:     "List platforms",
		Description: "Returns the platform table and the platforms present in the catalog",
		Tags:        []string{"Tags"},
	}, s.handleListPlatforms)
}

// === DTOs ===

// SearchArticlesInput contains parameters for a stateless search.
type SearchArticlesInput struct {
	Query    string `query:"q" maxLength:"200" doc:"Search text; fewer than 2 characters lists everything"`
	Tags     string `query:"tags" doc:"Comma-separated tag IDs; an article matches if it has any of them"`
	Platform string `query:"platform" doc:"Exact platform name"`
	Start    string `query:"start" doc:"Earliest creation date, YYYY-MM-DD or RFC3339"`
	End      string `query:"end" doc:"Latest creation date, inclusive"`
	Sort     string `query:"sort" doc:"newest (default) or oldest"`
	Page     int    `query:"page" doc:"1-based page number"`
	PageSize int    `query:"page_size" doc:"Items per page"`
	Mode     string `query:"mode" doc:"windowed (default) or cumulative"`
	Facets   bool   `query:"facets" doc:"Include tag and platform facets"`
}

// SearchArticlesResponse is one page of results.
type SearchArticlesResponse struct {
	Query        string               `json:"query"`
	Searched     bool                 `json:"searched" doc:"Whether text search narrowed the candidates"`
	Items        []dto.ArticleSummary `json:"items"`
	Total        int                  `json:"total"`
	TotalPages   int                  `json:"total_pages"`
	Page         int                  `json:"page"`
	PageSize     int                  `json:"page_size"`
	HasMore      bool                 `json:"has_more"`
	HasPrev      bool                 `json:"has_prev"`
	Suggestions  []string             `json:"suggestions"`
	DataVersion  uint64               `json:"data_version"`
	UsedFallback bool                 `json:"used_fallback"`
	Facets       *browse.Facets       `json:"facets,omitempty"`
}

// SearchArticlesOutput wraps the search response for Huma.
type SearchArticlesOutput struct {
	Body SearchArticlesResponse
}

// GetArticleInput identifies an article.
type GetArticleInput struct {
	ID string `path:"id" doc:"Article ID"`
}

// ArticleOutput wraps an article detail for Huma.
type ArticleOutput struct {
	Body dto.ArticleDetail
}

// TagResponse is a tag with its usage count.
type TagResponse struct {
	ID       string `json:"id" doc:"Tag ID"`
	Name     string `json:"name" doc:"Tag name"`
	Articles int    `json:"articles" doc:"Articles carrying the tag"`
}

// ListTagsOutput wraps the tag list for Huma.
type ListTagsOutput struct {
	Body struct {
		Tags []TagResponse `json:"tags"`
	}
}

// PlatformResponse is a platform with its segments and usage.
type PlatformResponse struct {
	Name     string   `json:"name"`
	Segments []string `json:"segments"`
	Known    bool     `json:"known" doc:"Whether the platform is in the static table"`
	Articles int      `json:"articles"`
}

// ListPlatformsOutput wraps the platform list for Huma.
type ListPlatformsOutput struct {
	Body struct {
		Platforms []PlatformResponse `json:"platforms"`
	}
}

// === Handlers ===

func (s *Server) handleSearchArticles(ctx context.Context, input *SearchArticlesInput) (*SearchArticlesOutput, error) {
	q, err := s.parseSearchInput(input)
	if err != nil {
		return nil, err
	}

	snap, release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SearchTimeout)
	defer cancel()

	res, err := browse.Run(ctx, s.searcher(snap), snap.Collection.Articles, q)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.SearchTimeoutf("search exceeded %s", s.cfg.SearchTimeout)
		}
		return nil, err
	}

	// Out-of-range pages snap to the last page rather than coming back empty.
	page := res.Page
	if clamped := browse.ClampPage(q.Page, page.TotalPages); clamped != page.Page {
		page = browse.Paginate(res.Ordered, q.PageSize, clamped, q.Mode)
	}

	enricher := dto.NewEnricher(snap.Tags)
	body := SearchArticlesResponse{
		Query:        strings.TrimSpace(input.Query),
		Searched:     res.Searched,
		Items:        enricher.Summaries(page.Items),
		Total:        page.Total,
		TotalPages:   page.TotalPages,
		Page:         page.Page,
		PageSize:     page.PageSize,
		HasMore:      page.HasMore,
		HasPrev:      page.HasPrev,
		Suggestions:  res.Suggestions,
		DataVersion:  snap.Version,
		UsedFallback: snap.UsedFallback,
	}
	if input.Facets {
		facets := snap.Facets
		body.Facets = &facets
	}
	return &SearchArticlesOutput{Body: body}, nil
}

func (s *Server) parseSearchInput(input *SearchArticlesInput) (browse.Query, error) {
	order, err := browse.ParseSortOrder(input.Sort)
	if err != nil {
		return browse.Query{}, err
	}
	mode, err := browse.ParseMode(input.Mode)
	if err != nil {
		return browse.Query{}, err
	}
	start, err := ParseDate("start", input.Start)
	if err != nil {
		return browse.Query{}, err
	}
	end, err := ParseDate("end", input.End)
	if err != nil {
		return browse.Query{}, err
	}
	if browse.InvertedRange(start, end) {
		return browse.Query{}, errors.InvalidInputf("start must not be after end")
	}

	pageSize := input.PageSize
	switch {
	case pageSize == 0:
		pageSize = s.cfg.DefaultPageSize
	case pageSize < 0 || pageSize > s.cfg.MaxPageSize:
		return browse.Query{}, errors.InvalidInputf("page_size must be between 1 and %d", s.cfg.MaxPageSize)
	}
	if input.Page < 0 {
		return browse.Query{}, errors.InvalidInputf("page must be positive")
	}

	return browse.Query{
		Text: input.Query,
		Criteria: browse.Criteria{
			TagIDs:   splitCSV(input.Tags),
			Platform: strings.TrimSpace(input.Platform),
			Start:    start,
			End:      end,
		},
		Sort:     order,
		Page:     max(input.Page, 1),
		PageSize: pageSize,
		Mode:     mode,
	}, nil
}

func (s *Server) handleGetArticle(_ context.Context, input *GetArticleInput) (*ArticleOutput, error) {
	snap, release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	a, ok := snap.Collection.Article(input.ID)
	if !ok {
		return nil, errors.NotFoundf("article %s not found", input.ID)
	}
	return &ArticleOutput{Body: dto.NewEnricher(snap.Tags).Detail(a)}, nil
}

func (s *Server) handleListTags(_ context.Context, _ *struct{}) (*ListTagsOutput, error) {
	out := &ListTagsOutput{}
	out.Body.Tags = []TagResponse{}

	snap := s.services.Catalog.Current()
	if snap == nil {
		return out, nil
	}

	counts := make(map[string]int, len(snap.Facets.Tags))
	for _, f := range snap.Facets.Tags {
		counts[f.ID] = f.Count
	}
	for _, t := range snap.Collection.Tags {
		out.Body.Tags = append(out.Body.Tags, TagResponse{ID: t.ID, Name: t.Name, Articles: counts[t.ID]})
	}
	return out, nil
}

func (s *Server) handleListPlatforms(_ context.Context, _ *struct{}) (*ListPlatformsOutput, error) {
	counts := map[string]int{}
	if snap := s.services.Catalog.Current(); snap != nil {
		for _, f := range snap.Facets.Platforms {
			counts[f.Name] = f.Count
		}
	}

	out := &ListPlatformsOutput{}
	out.Body.Platforms = make([]PlatformResponse, 0, len(domain.Platforms)+len(counts))
	for _, p := range domain.Platforms {
		out.Body.Platforms = append(out.Body.Platforms, PlatformResponse{
			Name:     p.Name,
			Segments: slices.Clone(p.Segments),
			Known:    true,
			Articles: counts[p.Name],
		})
	}

	// Platforms the table does not know still appear so they can be filtered on.
	var unknown []string
	for name := range counts {
		if !domain.KnownPlatform(name) {
			unknown = append(unknown, name)
		}
	}
	slices.Sort(unknown)
	for _, name := range unknown {
		out.Body.Platforms = append(out.Body.Platforms, PlatformResponse{
			Name:     name,
			Segments: []string{},
			Articles: counts[name],
		})
	}
	return out, nil
}

// acquire pins the current snapshot for the duration of a request.
func (s *Server) acquire() (*catalog.Snapshot, func(), error) {
	snap, release, ok := s.services.Catalog.Acquire()
	if !ok {
		return nil, nil, errors.Unavailable("catalog not loaded yet")
	}
	return snap, release, nil
}

func splitCSV(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" && !slices.Contains(out, part) {
			out = append(out, part)
		}
	}
	return out
}
