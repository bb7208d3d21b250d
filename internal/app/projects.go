package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"taskboard/api/internal/notify"
	"taskboard/api/internal/store"
)

// ProjectInput is the client payload for creating or updating a project.
// Collaborators arrive as usernames and are validated as a whole set.
type ProjectInput struct {
	Name          string   `json:"name"`
	Collaborators []string `json:"collaborators"`
}

func (s *Service) CreateProject(ctx context.Context, actor Session, input ProjectInput) (ProjectView, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return ProjectView{}, validationFailed("project name is required", nil)
	}
	collaboratorIDs, err := s.resolveCollaborators(ctx, input.Collaborators, actor.UserID)
	if err != nil {
		return ProjectView{}, err
	}
	project := store.Project{
		ID:            s.newID("prj"),
		Name:          name,
		OwnerID:       actor.UserID,
		Collaborators: collaboratorIDs,
	}
	if err := s.store.CreateProject(ctx, project); err != nil {
		return ProjectView{}, fmt.Errorf("create project: %w", err)
	}
	if err := s.search.IndexProject(ctx, project.ID, project.Name); err != nil {
		s.log.Warn("index project", zap.String("project_id", project.ID), zap.Error(err))
	}
	s.publish(ctx, notify.KeyProjectCreated, project.ID, "", actor)
	return s.projectView(ctx, project)
}

// ListProjects returns every project the actor owns or collaborates on.
func (s *Service) ListProjects(ctx context.Context, actor Session) ([]ProjectView, error) {
	projects, err := s.memberProjects(ctx, actor)
	if err != nil {
		return nil, err
	}
	views := make([]ProjectView, 0, len(projects))
	for _, project := range projects {
		view, err := s.projectView(ctx, project)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) memberProjects(ctx context.Context, actor Session) ([]store.Project, error) {
	owned, err := s.store.ListProjectsOwnedBy(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("list owned projects: %w", err)
	}
	shared, err := s.store.ListProjectsCollaborating(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("list shared projects: %w", err)
	}
	seen := make(map[string]bool, len(owned))
	projects := make([]store.Project, 0, len(owned)+len(shared))
	for _, project := range append(owned, shared...) {
		if seen[project.ID] {
			continue
		}
		seen[project.ID] = true
		projects = append(projects, project)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].CreatedAt.Before(projects[j].CreatedAt) })
	return projects, nil
}

func (s *Service) GetProject(ctx context.Context, actor Session, projectID string) (ProjectView, error) {
	project, err := s.requireMembership(ctx, projectID, actor)
	if err != nil {
		return ProjectView{}, err
	}
	return s.projectView(ctx, project)
}

// UpdateProject renames the project and replaces its collaborator set.
// Only the owner may do this; collaborators get membership, not control.
func (s *Service) UpdateProject(ctx context.Context, actor Session, projectID string, input ProjectInput) (ProjectView, error) {
	project, err := s.requireOwner(ctx, projectID, actor)
	if err != nil {
		return ProjectView{}, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return ProjectView{}, validationFailed("project name is required", nil)
	}
	collaboratorIDs, err := s.resolveCollaborators(ctx, input.Collaborators, project.OwnerID)
	if err != nil {
		return ProjectView{}, err
	}
	project.Name = name
	project.Collaborators = collaboratorIDs
	if err := s.store.UpdateProject(ctx, project); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ProjectView{}, notFound("Project not found")
		}
		return ProjectView{}, fmt.Errorf("update project: %w", err)
	}
	if err := s.search.IndexProject(ctx, project.ID, project.Name); err != nil {
		s.log.Warn("index project", zap.String("project_id", project.ID), zap.Error(err))
	}
	s.publish(ctx, notify.KeyProjectUpdated, project.ID, "", actor)
	return s.projectView(ctx, project)
}

func (s *Service) DeleteProject(ctx context.Context, actor Session, projectID string) error {
	if _, err := s.requireOwner(ctx, projectID, actor); err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	s.publish(ctx, notify.KeyProjectDeleted, projectID, "", actor)
	return nil
}

// LeaveProject removes the actor from the collaborator set. The owner cannot
// leave; ownership goes away only by deleting the project.
func (s *Service) LeaveProject(ctx context.Context, actor Session, projectID string) error {
	project, err := s.requireMembership(ctx, projectID, actor)
	if err != nil {
		return err
	}
	if project.OwnerID == actor.UserID {
		return validationFailed("the owner cannot leave the project", nil)
	}
	if err := s.store.RemoveCollaborator(ctx, projectID, actor.UserID); err != nil {
		return fmt.Errorf("leave project: %w", err)
	}
	s.publish(ctx, notify.KeyProjectUpdated, projectID, "", actor)
	return nil
}

func (s *Service) requireOwner(ctx context.Context, projectID string, actor Session) (store.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Project{}, notFound("Project not found")
	}
	if err != nil {
		return store.Project{}, fmt.Errorf("load project %s: %w", projectID, err)
	}
	if project.OwnerID != actor.UserID {
		return store.Project{}, notAuthorized("Only the project owner may do this")
	}
	return project, nil
}

// resolveCollaborators maps the submitted usernames to user IDs. The set is
// validated as a whole: any unknown username, any duplicate entry, and any
// appearance of the owner rejects the entire request, with the offenders
// listed in the error details.
func (s *Service) resolveCollaborators(ctx context.Context, usernames []string, ownerID string) ([]string, error) {
	trimmed := make([]string, 0, len(usernames))
	seen := make(map[string]bool, len(usernames))
	duplicates := make([]string, 0)
	for _, username := range usernames {
		username = strings.TrimSpace(username)
		if username == "" {
			continue
		}
		if seen[username] {
			duplicates = append(duplicates, username)
			continue
		}
		seen[username] = true
		trimmed = append(trimmed, username)
	}
	if len(duplicates) > 0 {
		return nil, validationFailed("collaborator list contains duplicates", map[string]any{"duplicateUsernames": duplicates})
	}
	if len(trimmed) == 0 {
		return []string{}, nil
	}
	users, err := s.directory.FindManyByUsernames(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve collaborators: %w", err)
	}
	found := make(map[string]store.User, len(users))
	for _, user := range users {
		found[user.Username] = user
	}
	if len(found) != len(trimmed) {
		unknown := make([]string, 0)
		for _, username := range trimmed {
			if _, ok := found[username]; !ok {
				unknown = append(unknown, username)
			}
		}
		return nil, validationFailed("some collaborators do not exist", map[string]any{"invalidUsernames": unknown})
	}
	ids := make([]string, 0, len(trimmed))
	for _, username := range trimmed {
		user := found[username]
		if user.ID == ownerID {
			return nil, validationFailed("the owner cannot be a collaborator of their own project", nil)
		}
		ids = append(ids, user.ID)
	}
	return ids, nil
}
