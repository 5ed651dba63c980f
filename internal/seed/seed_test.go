package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/dto"
)

const wirePayload = `{
  "articles": [
    {"Id": 12, "Title": "VPN drops on wake", "Description": "<p>Re-enable the adapter.</p>",
     "Platform": "Desktop", "DateCreated": "2024-02-10T08:30:00", "Tags": [3, {"Id": "4", "Name": "Network"}]},
    {"id": "13", "title": "", "tags": []},
    {"Id": "14", "Title": "Printer offline", "DateCreated": "not a date", "Tags": []}
  ],
  "tags": [
    {"Id": 4, "Name": "Network"},
    {"id": "3", "name": "Connectivity"}
  ]
}`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFile_Load(t *testing.T) {
	f := NewFile(writeFile(t, wirePayload), nil, dto.PolicySkip, nil)
	assert.Equal(t, "seed", f.Name())

	col, err := f.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, col.Tags, 2)
	assert.Equal(t, "Connectivity", col.Tags[0].Name)

	require.Len(t, col.Articles, 2, "untitled article skipped")
	assert.Equal(t, "12", col.Articles[0].ID)
	assert.Equal(t, []string{"3", "4"}, col.Articles[0].Tags)
	assert.Equal(t, "not a date", col.Articles[1].DateCreated, "malformed dates survive mapping")
}

func TestFile_LoadStrict(t *testing.T) {
	f := NewFile(writeFile(t, wirePayload), nil, dto.PolicyStrict, nil)

	_, err := f.Load(context.Background())
	var mErr *dto.MappingError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, "13", mErr.ID)
}

func TestFile_LoadErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.json") }},
		{"malformed", func(t *testing.T) string { return writeFile(t, `{"articles": [`) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFile(tt.path(t), nil, "", nil).Load(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestFile_LoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFile(writeFile(t, wirePayload), nil, "", nil).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "seed.json")
	col := domain.Collection{
		Tags: []domain.Tag{{ID: "t1", Name: "Accounts"}},
		Articles: []domain.Article{{
			ID:          "a1",
			Title:       "Unlock an account",
			Description: "<b>Call</b> support",
			Platform:    "Mobile",
			DateCreated: "2024-05-01T12:00:00Z",
			Tags:        []string{"t1", "ghost"},
		}},
	}

	f := NewFile(path, nil, dto.PolicyStrict, nil)
	require.NoError(t, f.Save(context.Background(), col))

	got, err := f.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, col.Tags, got.Tags)
	require.Len(t, got.Articles, 1)
	assert.Equal(t, col.Articles[0], got.Articles[0])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
