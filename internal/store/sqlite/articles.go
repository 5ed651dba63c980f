package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/dto"
)

const articleColumns = `id, title, description, category, platform, segment,
	date_created, solution, image_url_1, image_url_2, user_id`

// Load reads the whole collection in one read-only transaction and maps it
// through the dto boundary. It implements catalog.Source.
func (s *Store) Load(ctx context.Context) (domain.Collection, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return domain.Collection{}, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only

	var p dto.Payload
	if p.Tags, err = readTags(ctx, tx); err != nil {
		return domain.Collection{}, err
	}
	if p.Articles, err = readArticles(ctx, tx); err != nil {
		return domain.Collection{}, err
	}

	col, skipped, err := s.mapper.MapCollection(p, s.policy)
	if err != nil {
		return domain.Collection{}, err
	}
	for _, e := range skipped {
		s.logger.Warn("skipped invalid sql record", "error", e)
	}
	return col, nil
}

func readTags(ctx context.Context, tx *sql.Tx) ([]dto.Tag, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, name FROM tags ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	var tags []dto.Tag
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, dto.Tag{ID: dto.FlexID(id), Name: name})
	}
	return tags, rows.Err()
}

func readArticles(ctx context.Context, tx *sql.Tx) ([]dto.Article, error) {
	tagRefs, err := readArticleTags(ctx, tx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []dto.Article
	for rows.Next() {
		var a dto.Article
		var id, userID string
		err := rows.Scan(&id, &a.Title, &a.Description, &a.Category, &a.Platform, &a.Segment,
			&a.DateCreated, &a.Solution, &a.ImageURL1, &a.ImageURL2, &userID)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.ID, a.UserID = dto.FlexID(id), dto.FlexID(userID)
		a.Tags = tagRefs[id]
		if a.Tags == nil {
			a.Tags = []dto.TagRef{}
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func readArticleTags(ctx context.Context, tx *sql.Tx) (map[string][]dto.TagRef, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT article_id, tag_id FROM article_tags ORDER BY article_id, position, tag_id`)
	if err != nil {
		return nil, fmt.Errorf("query article tags: %w", err)
	}
	defer rows.Close()

	refs := make(map[string][]dto.TagRef)
	for rows.Next() {
		var articleID, tagID string
		if err := rows.Scan(&articleID, &tagID); err != nil {
			return nil, fmt.Errorf("scan article tag: %w", err)
		}
		refs[articleID] = append(refs[articleID], dto.TagRef{ID: dto.FlexID(tagID)})
	}
	return refs, rows.Err()
}

// ReplaceAll overwrites every table with col in one transaction.
func (s *Store) ReplaceAll(ctx context.Context, col domain.Collection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, table := range []string{"article_tags", "articles", "tags"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	insertTag, err := tx.PrepareContext(ctx,
		fmt.Sprintf(`INSERT INTO tags (id, name) VALUES (%s, %s)`, s.ph(1), s.ph(2)))
	if err != nil {
		return fmt.Errorf("prepare tag insert: %w", err)
	}
	defer insertTag.Close()

	for _, t := range col.Tags {
		if _, err := insertTag.ExecContext(ctx, t.ID, t.Name); err != nil {
			return fmt.Errorf("insert tag %s: %w", t.ID, err)
		}
	}

	placeholders := make([]string, 11)
	for i := range placeholders {
		placeholders[i] = s.ph(i + 1)
	}
	insertArticle, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO articles (%s) VALUES (%s)`,
		articleColumns, strings.Join(placeholders, ", ")))
	if err != nil {
		return fmt.Errorf("prepare article insert: %w", err)
	}
	defer insertArticle.Close()

	insertRef, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO article_tags (article_id, tag_id, position) VALUES (%s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3)))
	if err != nil {
		return fmt.Errorf("prepare article tag insert: %w", err)
	}
	defer insertRef.Close()

	for _, a := range col.Articles {
		_, err := insertArticle.ExecContext(ctx, a.ID, a.Title, a.Description, a.Category, a.Platform,
			a.Segment, a.DateCreated, a.Solution, a.ImageURL1, a.ImageURL2, a.UserID)
		if err != nil {
			return fmt.Errorf("insert article %s: %w", a.ID, err)
		}
		seen := make(map[string]struct{}, len(a.Tags))
		for pos, tagID := range a.Tags {
			if _, dup := seen[tagID]; dup {
				continue
			}
			seen[tagID] = struct{}{}
			if _, err := insertRef.ExecContext(ctx, a.ID, tagID, pos); err != nil {
				return fmt.Errorf("insert tag %s for article %s: %w", tagID, a.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("sql replica replaced", "articles", len(col.Articles), "tags", len(col.Tags))
	return nil
}
