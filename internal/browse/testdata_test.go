package browse

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cewkb/kbsearch/internal/domain"
)

var day0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func article(id string, daysAfter int, tags ...string) domain.Article {
	return domain.Article{
		ID:          id,
		Title:       "Article " + id,
		DateCreated: day0.AddDate(0, 0, daysAfter).Format(time.RFC3339),
		Tags:        tags,
	}
}

func ids(articles []domain.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.ID
	}
	return out
}

// randomCollection builds a reproducible collection with colliding dates,
// a few malformed timestamps, and mixed tags and platforms.
func randomCollection(seed uint64, n int) []domain.Article {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	platforms := []string{"", "Advisory", "Private Bank", "GWIM Call Center"}
	words := []string{"vpn", "reset", "password", "printer", "token", "database", "migration", "login"}

	out := make([]domain.Article, n)
	for i := range out {
		date := day0.AddDate(0, 0, r.IntN(10)).Format(time.RFC3339)
		if r.IntN(12) == 0 {
			date = "garbage"
		}
		var tags []string
		for t := range 3 {
			if r.IntN(3) == 0 {
				tags = append(tags, fmt.Sprintf("t%d", t))
			}
		}
		out[i] = domain.Article{
			ID:          fmt.Sprintf("a%03d", i),
			Title:       words[r.IntN(len(words))] + " " + words[r.IntN(len(words))],
			Platform:    platforms[r.IntN(len(platforms))],
			DateCreated: date,
			Tags:        tags,
		}
	}
	return out
}
