// internal/database/project_store.go
package database

import (
	"context"

	custom_errors "portfolio-sync/internal/errors"
	"portfolio-sync/internal/model"
)

const (
	listProjectKeysSQL = `SELECT lower(slug), lower(coalesce(repo_url, '')) FROM projects`

	insertDraftSQL = `INSERT INTO projects (title, slug, category, description, image_url, live_url, repo_url, tags, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
)

// ProjectStore reads and creates rows in the projects table.
type ProjectStore struct {
	db DBTX
}

func NewProjectStore(db DBTX) *ProjectStore {
	return &ProjectStore{db: db}
}

// ListSlugsAndURLs returns the lowercased slug and repository URL of every project, draft or published.
func (s *ProjectStore) ListSlugsAndURLs(ctx context.Context) ([]model.ProjectKey, error) {
	rows, err := s.db.Query(ctx, listProjectKeysSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []model.ProjectKey
	for rows.Next() {
		var k model.ProjectKey
		if err := rows.Scan(&k.Slug, &k.RepoURL); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// InsertDraft creates a project row. A slug or repository URL collision returns *DuplicateProjectError.
func (s *ProjectStore) InsertDraft(ctx context.Context, p model.DraftProject) error {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := s.db.Exec(ctx, insertDraftSQL,
		p.Title,
		p.Slug,
		p.Category,
		p.Description,
		p.ImageURL,
		p.LiveURL,
		p.RepoURL,
		tags,
		p.Status,
	)
	if isUniqueViolation(err) {
		return &custom_errors.DuplicateProjectError{Slug: p.Slug, RepoURL: p.RepoURL}
	}
	return err
}
