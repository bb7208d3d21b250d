// Package search finds users and projects by partial name.
package search

import "context"

const (
	KindUser    = "user"
	KindProject = "project"
)

// Result is one search hit, shaped the same regardless of backend.
type Result struct {
	Kind     string `json:"kind"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
}

// Backend is a pluggable search implementation.
type Backend interface {
	SearchUsers(ctx context.Context, query string, limit int) ([]Result, error)
	SearchProjects(ctx context.Context, query string, limit int) ([]Result, error)
	IndexUser(ctx context.Context, id, name, username string) error
	IndexProject(ctx context.Context, id, name string) error
}
