package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/cewkb/kbsearch/internal/catalog"
	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/ratelimit"
	"github.com/cewkb/kbsearch/internal/session"
	"github.com/cewkb/kbsearch/internal/sse"
)

var testTags = []domain.Tag{
	{ID: "net", Name: "Networking"},
	{ID: "db", Name: "Databases"},
	{ID: "urgent", Name: "Urgent"},
}

// weekOfArticles returns seven articles created on consecutive days, oldest
// first.
func weekOfArticles() []domain.Article {
	titles := []string{
		"Database Migration Guide",
		"Login Flow",
		"VPN Setup",
		"Printer Driver Install",
		"Password Reset",
		"Mailbox Quota",
		"Wifi Troubleshooting",
	}
	out := make([]domain.Article, len(titles))
	for i, title := range titles {
		out[i] = domain.Article{
			ID:          fmt.Sprintf("a%d", i+1),
			Title:       title,
			Description: "<p>Steps for <b>" + title + "</b></p>",
			Platform:    "Advisory",
			Segment:     "MEAC",
			DateCreated: fmt.Sprintf("2024-03-%02dT09:00:00Z", i+1),
		}
	}
	out[0].Tags = []string{"db"}
	out[2].Tags = []string{"net", "urgent", "gone"}
	out[6].Platform = "Mobile"
	out[6].Segment = ""
	return out
}

// stubSource serves a fixed collection or error.
type stubSource struct {
	col domain.Collection
	err error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Load(ctx context.Context) (domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return domain.Collection{}, err
	}
	return s.col, s.err
}

// testEnvelope decodes enveloped responses.
type testEnvelope[T any] struct {
	V       int       `json:"v"`
	Success bool      `json:"success"`
	Data    T         `json:"data"`
	Error   *APIError `json:"error"`
}

type testServer struct {
	*Server
	api      humatest.TestAPI
	catalog  *catalog.Catalog
	sessions *session.Registry
	events   *sse.Manager
	source   *stubSource
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	source := &stubSource{col: domain.Collection{Articles: weekOfArticles(), Tags: testTags}}

	cat := catalog.New(catalog.NewLoader(source), catalog.Options{Logger: logger})
	t.Cleanup(func() { _ = cat.Close() })

	opts := session.DefaultOptions()
	opts.Debounce = 0
	opts.Logger = logger
	reg := session.NewRegistry(cat, opts, time.Hour)
	t.Cleanup(reg.Close)

	events := sse.NewManager(logger)
	t.Cleanup(func() { _ = events.Shutdown(context.Background()) })

	limiter := ratelimit.PerMinute(60, 60)
	t.Cleanup(limiter.Stop)

	s := NewServer(&Services{
		Catalog:        cat,
		Sessions:       reg,
		Events:         events,
		RefreshLimiter: limiter,
	}, Config{SearchTimeout: 5 * time.Second}, logger)

	return &testServer{
		Server:   s,
		api:      humatest.Wrap(t, s.API()),
		catalog:  cat,
		sessions: reg,
		events:   events,
		source:   source,
	}
}

// load installs the stub collection as the current snapshot.
func (ts *testServer) load(t *testing.T) *catalog.Snapshot {
	t.Helper()
	snap, err := ts.catalog.Refresh(context.Background())
	require.NoError(t, err)
	return snap
}

func decode[T any](t *testing.T, body []byte) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(body, &env), "body: %s", body)
	return env
}
