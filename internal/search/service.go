package search

import (
	"context"
	"strings"
)

const defaultLimit = 20

// Service fronts a primary backend with a fallback. When Meilisearch is the
// primary and it is down or erroring, queries fall through to the database
// lookup so search never goes dark.
type Service struct {
	primary  Backend
	fallback Backend
}

func NewService(primary, fallback Backend) *Service {
	return &Service{primary: primary, fallback: fallback}
}

func (s *Service) Users(ctx context.Context, query string, limit int) ([]Result, error) {
	return s.run(ctx, query, limit, Backend.SearchUsers)
}

func (s *Service) Projects(ctx context.Context, query string, limit int) ([]Result, error) {
	return s.run(ctx, query, limit, Backend.SearchProjects)
}

func (s *Service) run(ctx context.Context, query string, limit int, fn func(Backend, context.Context, string, int) ([]Result, error)) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = defaultLimit
	}
	if s.primary != nil {
		results, err := fn(s.primary, ctx, query, limit)
		if err == nil {
			return results, nil
		}
	}
	return fn(s.fallback, ctx, query, limit)
}

// IndexUser mirrors a user into the primary backend, if one is configured.
func (s *Service) IndexUser(ctx context.Context, id, name, username string) error {
	if s.primary == nil {
		return nil
	}
	return s.primary.IndexUser(ctx, id, name, username)
}

// IndexProject mirrors a project into the primary backend, if one is configured.
func (s *Service) IndexProject(ctx context.Context, id, name string) error {
	if s.primary == nil {
		return nil
	}
	return s.primary.IndexProject(ctx, id, name)
}
