package app

import (
	"context"
	"fmt"
	"time"

	"taskboard/api/internal/store"
)

// Views render stored IDs back into usernames. This is a two-phase read: the
// row first, then one batched user lookup for every ID it references.

// noModified is what clients see while a task has never been edited.
const noModified = "no-modified"

type ProjectView struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Owner         string    `json:"owner"`
	Collaborators []string  `json:"collaborators"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type CommentView struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Author string `json:"author"`
}

type TaskView struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Status     string        `json:"status"`
	ProjectID  string        `json:"projectId"`
	CreatedBy  string        `json:"createdBy"`
	ModifiedBy string        `json:"modifiedBy"`
	Comments   []CommentView `json:"comments"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

func (s *Service) projectView(ctx context.Context, project store.Project) (ProjectView, error) {
	ids := append([]string{project.OwnerID}, project.Collaborators...)
	usernames, err := s.usernameIndex(ctx, ids)
	if err != nil {
		return ProjectView{}, err
	}
	collaborators := make([]string, 0, len(project.Collaborators))
	for _, id := range project.Collaborators {
		collaborators = append(collaborators, usernames.lookup(id))
	}
	return ProjectView{
		ID:            project.ID,
		Name:          project.Name,
		Owner:         usernames.lookup(project.OwnerID),
		Collaborators: collaborators,
		CreatedAt:     project.CreatedAt,
		UpdatedAt:     project.UpdatedAt,
	}, nil
}

func (s *Service) taskView(ctx context.Context, task store.Task) (TaskView, error) {
	views, err := s.taskViews(ctx, []store.Task{task})
	if err != nil {
		return TaskView{}, err
	}
	return views[0], nil
}

func (s *Service) taskViews(ctx context.Context, tasks []store.Task) ([]TaskView, error) {
	ids := make([]string, 0)
	for _, task := range tasks {
		ids = append(ids, task.CreatedBy)
		if task.ModifiedBy != nil {
			ids = append(ids, *task.ModifiedBy)
		}
		for _, comment := range task.Comments {
			ids = append(ids, comment.AuthorID)
		}
	}
	usernames, err := s.usernameIndex(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		comments := make([]CommentView, 0, len(task.Comments))
		for _, comment := range task.Comments {
			comments = append(comments, CommentView{
				ID:     comment.ID,
				Text:   comment.Text,
				Author: usernames.lookup(comment.AuthorID),
			})
		}
		modifiedBy := noModified
		if task.ModifiedBy != nil {
			modifiedBy = usernames.lookup(*task.ModifiedBy)
		}
		views = append(views, TaskView{
			ID:         task.ID,
			Name:       task.Name,
			Status:     string(task.Status),
			ProjectID:  task.ProjectID,
			CreatedBy:  usernames.lookup(task.CreatedBy),
			ModifiedBy: modifiedBy,
			Comments:   comments,
			CreatedAt:  task.CreatedAt,
			UpdatedAt:  task.UpdatedAt,
		})
	}
	return views, nil
}

type usernameIndex map[string]string

// lookup degrades gracefully: a deleted account renders as "unknown" instead
// of failing the whole read.
func (idx usernameIndex) lookup(userID string) string {
	if username, ok := idx[userID]; ok {
		return username
	}
	return "unknown"
}

func (s *Service) usernameIndex(ctx context.Context, ids []string) (usernameIndex, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	users, err := s.store.GetUsersByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("load usernames: %w", err)
	}
	idx := make(usernameIndex, len(users))
	for _, user := range users {
		idx[user.ID] = user.Username
	}
	return idx, nil
}
