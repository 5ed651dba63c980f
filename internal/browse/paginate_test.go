package browse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestPaginate_Windowed(t *testing.T) {
	items := seq(12)

	tests := []struct {
		name      string
		page      int
		wantItems []int
		hasMore   bool
		hasPrev   bool
	}{
		{"first", 1, []int{1, 2, 3, 4, 5}, true, false},
		{"middle", 2, []int{6, 7, 8, 9, 10}, true, true},
		{"last partial", 3, []int{11, 12}, false, true},
		{"past end", 4, []int{}, false, true},
		{"below one", 0, []int{1, 2, 3, 4, 5}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(items, 5, tt.page, Windowed)
			assert.Equal(t, tt.wantItems, p.Items)
			assert.Equal(t, 12, p.Total)
			assert.Equal(t, 3, p.TotalPages)
			assert.Equal(t, tt.hasMore, p.HasMore)
			assert.Equal(t, tt.hasPrev, p.HasPrev)
		})
	}
}

func TestPaginate_Cumulative(t *testing.T) {
	items := seq(12)

	assert.Equal(t, seq(5), Paginate(items, 5, 1, Cumulative).Items)
	assert.Equal(t, seq(10), Paginate(items, 5, 2, Cumulative).Items)

	last := Paginate(items, 5, 3, Cumulative)
	assert.Equal(t, items, last.Items)
	assert.False(t, last.HasMore)
	assert.False(t, last.HasPrev)
}

func TestPaginate_Empty(t *testing.T) {
	p := Paginate([]string{}, 5, 1, Windowed)

	assert.Equal(t, []string{}, p.Items)
	assert.Equal(t, 0, p.Total)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasMore)
}

func TestPaginate_DefaultPageSize(t *testing.T) {
	p := Paginate(seq(7), 0, 1, Windowed)
	assert.Equal(t, DefaultPageSize, p.PageSize)
	assert.Len(t, p.Items, DefaultPageSize)
}

func TestPaginate_DoesNotAlias(t *testing.T) {
	items := seq(3)
	p := Paginate(items, 5, 1, Windowed)
	p.Items[0] = 99
	assert.Equal(t, 1, items[0])
}

func TestPaginate_WindowedCoverage(t *testing.T) {
	for _, n := range []int{0, 1, 4, 5, 6, 23, 25} {
		for _, size := range []int{1, 3, 5, 10} {
			items := seq(n)
			pages := TotalPages(n, size)

			var joined []int
			for page := 1; page <= pages; page++ {
				joined = append(joined, Paginate(items, size, page, Windowed).Items...)
			}
			if n == 0 {
				assert.Empty(t, joined)
				continue
			}
			assert.Equal(t, items, joined, "n=%d size=%d", n, size)
		}
	}
}

func TestClampPage(t *testing.T) {
	assert.Equal(t, 1, ClampPage(0, 3))
	assert.Equal(t, 2, ClampPage(2, 3))
	assert.Equal(t, 3, ClampPage(9, 3))
	assert.Equal(t, 1, ClampPage(4, 0))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	assert.NoError(t, err)
	assert.Equal(t, Windowed, m)

	m, err = ParseMode("Cumulative")
	assert.NoError(t, err)
	assert.Equal(t, Cumulative, m)

	_, err = ParseMode("infinite")
	assert.Error(t, err)
}
