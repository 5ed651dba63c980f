// Package main generates a sample knowledge-base collection for local
// development.
//
// The collection is written as a seed file, a SQLite replica, or both.
//
// Usage:
//
//	go run ./cmd/kbseed -out data/seed.json
//	go run ./cmd/kbseed -sqlite data/kb.db -articles 500
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/logger"
	"github.com/cewkb/kbsearch/internal/seed"
	"github.com/cewkb/kbsearch/internal/store/sqlite"
)

var (
	out      = flag.String("out", "", "Write the collection as a seed JSON file")
	dsn      = flag.String("sqlite", "", "Write the collection into a SQLite database")
	articles = flag.Int("articles", 120, "Number of articles to generate")
	seedVal  = flag.Uint64("seed", 1, "Random seed, for reproducible collections")
)

var tagNames = []string{
	"Login", "Password", "VPN", "Printer", "Email", "Mobile App", "Statements",
	"Wire Transfer", "Card Activation", "Fraud Alert", "Account Opening", "Outage",
}

var subjects = []string{
	"password reset", "two-factor enrollment", "VPN disconnects", "printer driver install",
	"mailbox quota", "statement download", "wire transfer cutoff", "card activation",
	"fraud alert review", "account opening checklist", "mobile app crash", "outage escalation",
}

var verbs = []string{"Troubleshooting", "How to handle", "Steps for", "FAQ:", "Known issue:"}

var categories = []string{"How-To", "Troubleshooting", "Policy", "Announcement"}

func main() {
	flag.Parse()
	if *out == "" && *dsn == "" {
		log.Fatal("nothing to do: pass -out and/or -sqlite")
	}

	rng := rand.New(rand.NewPCG(*seedVal, *seedVal))
	col := generate(rng, *articles, time.Now().UTC())

	if *out != "" {
		if err := seed.Write(*out, col); err != nil {
			log.Fatalf("Failed to write seed file: %v", err)
		}
		fmt.Printf("Wrote %d articles and %d tags to %s\n", len(col.Articles), len(col.Tags), *out)
	}

	if *dsn != "" {
		store, err := sqlite.Open(sqlite.DriverSQLite, *dsn, sqlite.Options{Logger: logger.Discard()})
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer store.Close()

		if err := store.ReplaceAll(context.Background(), col); err != nil {
			log.Fatalf("Failed to write database: %v", err)
		}
		fmt.Printf("Wrote %d articles and %d tags to %s\n", len(col.Articles), len(col.Tags), *dsn)
	}
}

func generate(rng *rand.Rand, n int, now time.Time) domain.Collection {
	tags := make([]domain.Tag, len(tagNames))
	for i, name := range tagNames {
		tags[i] = domain.Tag{ID: uuid.NewString(), Name: name}
	}

	arts := make([]domain.Article, n)
	for i := range arts {
		platform := domain.Platforms[rng.IntN(len(domain.Platforms))]
		segment := ""
		if len(platform.Segments) > 0 {
			segment = platform.Segments[rng.IntN(len(platform.Segments))]
		}

		subject := subjects[rng.IntN(len(subjects))]
		title := fmt.Sprintf("%s %s", verbs[rng.IntN(len(verbs))], subject)
		created := now.Add(-time.Duration(rng.IntN(720)) * time.Hour)

		arts[i] = domain.Article{
			ID:          uuid.NewString(),
			Title:       title,
			Description: fmt.Sprintf("<p>Use this article when a client reports a <b>%s</b> problem.</p>", subject),
			Category:    categories[rng.IntN(len(categories))],
			Platform:    platform.Name,
			Segment:     segment,
			DateCreated: created.Format(time.RFC3339),
			Solution:    solution(rng, subject),
			Tags:        pickTags(rng, tags),
			UserID:      fmt.Sprintf("agent%03d", rng.IntN(40)),
		}
	}
	return domain.Collection{Articles: arts, Tags: tags}
}

func solution(rng *rand.Rand, subject string) string {
	var b strings.Builder
	b.WriteString("<ol>")
	for step := range 2 + rng.IntN(3) {
		fmt.Fprintf(&b, "<li>Step %d for %s.</li>", step+1, subject)
	}
	b.WriteString("</ol>")
	return b.String()
}

func pickTags(rng *rand.Rand, tags []domain.Tag) []string {
	n := rng.IntN(4)
	ids := make([]string, 0, n)
	for _, i := range rng.Perm(len(tags))[:n] {
		ids = append(ids, tags[i].ID)
	}
	return ids
}
