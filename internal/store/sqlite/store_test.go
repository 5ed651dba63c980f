package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/dto"
	"github.com/cewkb/kbsearch/internal/errors"
)

func openTestStore(t *testing.T, policy dto.Policy) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "kb.db"), Options{Policy: policy})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testCollection() domain.Collection {
	return domain.Collection{
		Tags: []domain.Tag{
			{ID: "2", Name: "Database"},
			{ID: "1", Name: "Network"},
		},
		Articles: []domain.Article{
			{
				ID:          "100",
				Title:       "Reset the router",
				Description: "<p>Unplug it.</p>",
				Platform:    "Mobile",
				Segment:     "Retail",
				DateCreated: "2024-03-01T10:00:00",
				Tags:        []string{"1", "2"},
			},
			{
				ID:          "101",
				Title:       "Rebuild the index",
				DateCreated: "2024-03-02T10:00:00",
				Tags:        []string{"2", "2", "99"},
				UserID:      "7",
			},
		},
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "x", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported sql driver")
}

func TestStore_LoadEmpty(t *testing.T) {
	s := openTestStore(t, dto.PolicySkip)
	assert.Equal(t, "sql", s.Name())

	col, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, col.Articles)
	assert.Empty(t, col.Tags)
}

func TestStore_ReplaceAllThenLoad(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, dto.PolicySkip)

	require.NoError(t, s.ReplaceAll(ctx, testCollection()))

	col, err := s.Load(ctx)
	require.NoError(t, err)

	require.Len(t, col.Tags, 2)
	assert.Equal(t, "Database", col.Tags[0].Name, "tags sorted by name")

	require.Len(t, col.Articles, 2)
	a := col.Articles[0]
	assert.Equal(t, "100", a.ID)
	assert.Equal(t, "Reset the router", a.Title)
	assert.Equal(t, "<p>Unplug it.</p>", a.Description)
	assert.Equal(t, "Retail", a.Segment)
	assert.Equal(t, []string{"1", "2"}, a.Tags, "tag order preserved")

	b := col.Articles[1]
	assert.Equal(t, []string{"2", "99"}, b.Tags, "duplicates dropped, dangling kept")
	assert.Equal(t, "7", b.UserID)
}

func TestStore_ReplaceAllOverwrites(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, dto.PolicySkip)
	require.NoError(t, s.ReplaceAll(ctx, testCollection()))

	smaller := testCollection()
	smaller.Articles = smaller.Articles[1:]
	smaller.Tags = nil
	require.NoError(t, s.ReplaceAll(ctx, smaller))

	col, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, col.Articles, 1)
	assert.Equal(t, "101", col.Articles[0].ID)
	assert.Empty(t, col.Tags)
}

func TestStore_InvalidRows(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, s *Store) {
		t.Helper()
		require.NoError(t, s.ReplaceAll(ctx, testCollection()))
		_, err := s.db.ExecContext(ctx, `INSERT INTO articles (id, title) VALUES ('102', '   ')`)
		require.NoError(t, err)
	}

	t.Run("skip", func(t *testing.T) {
		s := openTestStore(t, dto.PolicySkip)
		seed(t, s)

		col, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, col.Articles, 2)
	})

	t.Run("strict", func(t *testing.T) {
		s := openTestStore(t, dto.PolicyStrict)
		seed(t, s)

		_, err := s.Load(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrValidation)

		var mErr *dto.MappingError
		require.ErrorAs(t, err, &mErr)
		assert.Equal(t, "102", mErr.ID)
	})
}

func TestStore_LoadHonoursContext(t *testing.T) {
	s := openTestStore(t, dto.PolicySkip)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Load(ctx)
	assert.Error(t, err)
}

func TestStore_Placeholders(t *testing.T) {
	s := &Store{driver: DriverSQLite}
	assert.Equal(t, "?", s.ph(3))
	s.driver = DriverPostgres
	assert.Equal(t, "$3", s.ph(3))
}
