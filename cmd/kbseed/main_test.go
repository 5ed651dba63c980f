package main

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cewkb/kbsearch/internal/domain"
)

func TestGenerate(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	col := generate(rand.New(rand.NewPCG(7, 7)), 50, now)

	require.Len(t, col.Articles, 50)
	assert.Len(t, col.Tags, len(tagNames))

	tagIdx := domain.IndexTags(col.Tags)
	ids := map[string]bool{}
	for _, a := range col.Articles {
		assert.False(t, ids[a.ID], "duplicate id %s", a.ID)
		ids[a.ID] = true

		assert.True(t, domain.KnownPlatform(a.Platform))
		assert.True(t, a.Segment == "" || domain.ValidSegment(a.Platform, a.Segment))

		created, err := a.Created()
		require.NoError(t, err)
		assert.False(t, created.After(now))

		for _, id := range a.Tags {
			assert.Contains(t, tagIdx, id)
		}
	}
}
