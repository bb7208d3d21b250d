// Package authz decides whether an actor may operate on a project.
package authz

import (
	"context"
	"database/sql"
	"errors"

	"taskboard/api/internal/store"
)

// Reason explains a negative decision.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonProjectNotFound Reason = "PROJECT_NOT_FOUND"
	ReasonNotAuthorized   Reason = "NOT_AUTHORIZED"
)

// Decision carries the outcome of a membership check. When Authorized is
// true, Project holds the loaded row so callers do not fetch it twice.
type Decision struct {
	Authorized bool
	Reason     Reason
	Project    store.Project
}

// ProjectSource is the slice of the store the engine needs.
type ProjectSource interface {
	GetProject(ctx context.Context, projectID string) (store.Project, error)
}

type Engine struct {
	projects ProjectSource
}

func NewEngine(projects ProjectSource) *Engine {
	return &Engine{projects: projects}
}

// Authorize loads the project and checks that the actor is its owner or one
// of its collaborators. An absent project and a non-member both come back as
// unauthorized decisions, not errors; only a store failure is an error.
func (e *Engine) Authorize(ctx context.Context, projectID, actorID string) (Decision, error) {
	project, err := e.projects.GetProject(ctx, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return Decision{Reason: ReasonProjectNotFound}, nil
	}
	if err != nil {
		return Decision{}, err
	}
	if !project.IsMember(actorID) {
		return Decision{Reason: ReasonNotAuthorized}, nil
	}
	return Decision{Authorized: true, Project: project}, nil
}
