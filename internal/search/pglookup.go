package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PGLookup is the fallback backend: ILIKE scans over the primary database.
// It needs no indexing, so IndexUser and IndexProject are no-ops.
type PGLookup struct {
	db *sql.DB
}

func NewPGLookup(db *sql.DB) *PGLookup {
	return &PGLookup{db: db}
}

func likePattern(query string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(query)
	return "%" + escaped + "%"
}

func (p *PGLookup) SearchUsers(ctx context.Context, query string, limit int) ([]Result, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, username FROM users
		WHERE username ILIKE $1 OR name ILIKE $1
		ORDER BY username
		LIMIT $2
	`, likePattern(query), limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		r := Result{Kind: KindUser}
		if err := rows.Scan(&r.ID, &r.Name, &r.Username); err != nil {
			return nil, fmt.Errorf("scan user hit: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (p *PGLookup) SearchProjects(ctx context.Context, query string, limit int) ([]Result, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name FROM projects
		WHERE name ILIKE $1
		ORDER BY name
		LIMIT $2
	`, likePattern(query), limit)
	if err != nil {
		return nil, fmt.Errorf("search projects: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		r := Result{Kind: KindProject}
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, fmt.Errorf("scan project hit: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (p *PGLookup) IndexUser(ctx context.Context, id, name, username string) error { return nil }

func (p *PGLookup) IndexProject(ctx context.Context, id, name string) error { return nil }
