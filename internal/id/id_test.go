package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	for range 1000 {
		id, err := Generate("ses")
		require.NoError(t, err)
		assert.False(t, ids[id], "ID should be unique: %s", id)
		ids[id] = true
	}
	assert.Len(t, ids, 1000)
}

func TestGenerate_Format(t *testing.T) {
	id, err := Generate("ses")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, "ses-"))
	assert.Len(t, id, len("ses-")+21)
}

func TestMustGenerate(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = MustGenerate("ses")
	})
}

func TestHasPrefix(t *testing.T) {
	good := MustGenerate("ses")

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"generated", good, true},
		{"wrong prefix", "art-" + good[4:], false},
		{"too short", "ses-abc", false},
		{"no dash", "ses" + good[4:], false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPrefix(tt.in, "ses"))
		})
	}
}
