package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskboard/api/internal/identity"
	"taskboard/api/internal/notify"
	"taskboard/api/internal/store"
)

// TaskInput is the client payload for creating or fully updating a task.
// CreatedBy names the task author by username; the update flow re-resolves
// it, so authorship can be reassigned by whoever edits the task.
type TaskInput struct {
	Name      string                  `json:"name"`
	Status    string                  `json:"status"`
	ProjectID string                  `json:"projectId"`
	CreatedBy string                  `json:"createdBy"`
	Comments  []identity.CommentDraft `json:"comments"`
}

const minCommentLen = 6

func (s *Service) CreateTask(ctx context.Context, actor Session, input TaskInput) (TaskView, error) {
	if _, err := s.requireMembership(ctx, input.ProjectID, actor); err != nil {
		return TaskView{}, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return TaskView{}, validationFailed("task name is required", nil)
	}
	status := store.StatusUnselected
	if input.Status != "" {
		parsed, ok := store.ParseTaskStatus(input.Status)
		if !ok {
			return TaskView{}, validationFailed(fmt.Sprintf("unknown status %q", input.Status), nil)
		}
		status = parsed
	}
	creator, err := s.resolveAuthor(ctx, input.CreatedBy, actor)
	if err != nil {
		return TaskView{}, err
	}
	comments, problems, err := s.resolver.ResolveList(ctx, input.Comments, func() string { return s.newID("cmt") })
	if err != nil {
		return TaskView{}, err
	}
	if len(problems) > 0 {
		return TaskView{}, resolutionFailed("some comment authors could not be resolved", problems)
	}
	task := store.Task{
		ID:        s.newID("tsk"),
		Name:      name,
		Status:    status,
		ProjectID: input.ProjectID,
		CreatedBy: creator,
		Comments:  comments,
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return TaskView{}, fmt.Errorf("create task: %w", err)
	}
	s.publish(ctx, notify.KeyTaskCreated, task.ProjectID, task.ID, actor)
	return s.taskView(ctx, task)
}

// ListTasks returns the tasks of every project the actor belongs to.
func (s *Service) ListTasks(ctx context.Context, actor Session) ([]TaskView, error) {
	projects, err := s.memberProjects(ctx, actor)
	if err != nil {
		return nil, err
	}
	projectIDs := make([]string, 0, len(projects))
	for _, project := range projects {
		projectIDs = append(projectIDs, project.ID)
	}
	tasks, err := s.store.ListTasksByProjects(ctx, projectIDs)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return s.taskViews(ctx, tasks)
}

func (s *Service) GetTask(ctx context.Context, actor Session, taskID string) (TaskView, error) {
	task, err := s.memberTask(ctx, actor, taskID)
	if err != nil {
		return TaskView{}, err
	}
	return s.taskView(ctx, task)
}

// UpdateTask replaces the whole task: name, status, authorship and the
// complete comment list. Concurrent comment additions lose to this replace.
func (s *Service) UpdateTask(ctx context.Context, actor Session, taskID string, input TaskInput) (TaskView, error) {
	task, err := s.memberTask(ctx, actor, taskID)
	if err != nil {
		return TaskView{}, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return TaskView{}, validationFailed("task name is required", nil)
	}
	status, ok := store.ParseTaskStatus(input.Status)
	if !ok {
		return TaskView{}, validationFailed(fmt.Sprintf("unknown status %q", input.Status), nil)
	}
	creator, err := s.resolveAuthor(ctx, input.CreatedBy, actor)
	if err != nil {
		return TaskView{}, err
	}
	comments, problems, err := s.resolver.ResolveList(ctx, input.Comments, func() string { return s.newID("cmt") })
	if err != nil {
		return TaskView{}, err
	}
	if len(problems) > 0 {
		return TaskView{}, resolutionFailed("some comment authors could not be resolved", problems)
	}

	modifier := actor.UserID
	task.Name = name
	task.Status = status
	task.CreatedBy = creator
	task.ModifiedBy = &modifier
	task.Comments = comments
	updated, err := s.store.ReplaceTask(ctx, task)
	if errors.Is(err, sql.ErrNoRows) {
		return TaskView{}, notFound("Task not found")
	}
	if err != nil {
		return TaskView{}, fmt.Errorf("update task: %w", err)
	}
	s.publish(ctx, notify.KeyTaskUpdated, updated.ProjectID, updated.ID, actor)
	return s.taskView(ctx, updated)
}

func (s *Service) DeleteTask(ctx context.Context, actor Session, taskID string) error {
	task, err := s.memberTask(ctx, actor, taskID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	s.publish(ctx, notify.KeyTaskDeleted, task.ProjectID, task.ID, actor)
	return nil
}

// UpdateTaskStatus moves the task to any of the four statuses. There is no
// transition graph; every move is legal, including back to unselected.
func (s *Service) UpdateTaskStatus(ctx context.Context, actor Session, taskID, rawStatus string) (TaskView, error) {
	task, err := s.memberTask(ctx, actor, taskID)
	if err != nil {
		return TaskView{}, err
	}
	status, ok := store.ParseTaskStatus(rawStatus)
	if !ok {
		return TaskView{}, validationFailed(fmt.Sprintf("unknown status %q", rawStatus), nil)
	}
	updated, err := s.store.UpdateTaskStatus(ctx, task.ID, status)
	if errors.Is(err, sql.ErrNoRows) {
		return TaskView{}, notFound("Task not found")
	}
	if err != nil {
		return TaskView{}, fmt.Errorf("update task status: %w", err)
	}
	s.publish(ctx, notify.KeyTaskUpdated, updated.ProjectID, updated.ID, actor)
	return s.taskView(ctx, updated)
}

// AddComment appends one comment authored by the actor. The author comes from
// the session, never from the payload.
func (s *Service) AddComment(ctx context.Context, actor Session, taskID, text string) (TaskView, error) {
	task, err := s.memberTask(ctx, actor, taskID)
	if err != nil {
		return TaskView{}, err
	}
	text = strings.TrimSpace(text)
	if len(text) < minCommentLen {
		return TaskView{}, validationFailed(fmt.Sprintf("comment must be at least %d characters", minCommentLen), nil)
	}
	task.Comments.Append(store.Comment{
		ID:       s.newID("cmt"),
		Text:     text,
		AuthorID: actor.UserID,
	})
	if err := s.replaceComments(ctx, task); err != nil {
		return TaskView{}, err
	}
	s.publish(ctx, notify.KeyCommentAdded, task.ProjectID, task.ID, actor)
	return s.taskView(ctx, task)
}

// EditComment rewrites a comment's text. Membership is not enough: only the
// comment's author may edit it, owner included.
func (s *Service) EditComment(ctx context.Context, actor Session, taskID, commentID, text string) (TaskView, error) {
	task, err := s.memberTask(ctx, actor, taskID)
	if err != nil {
		return TaskView{}, err
	}
	comment, ok := task.Comments.Find(commentID)
	if !ok {
		return TaskView{}, notFound("Comment not found")
	}
	if comment.AuthorID != actor.UserID {
		return TaskView{}, notAuthorized("Only the comment author may edit it")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return TaskView{}, validationFailed("comment text is required", nil)
	}
	task.Comments.SetText(commentID, text)
	if err := s.replaceComments(ctx, task); err != nil {
		return TaskView{}, err
	}
	s.publish(ctx, notify.KeyTaskUpdated, task.ProjectID, task.ID, actor)
	return s.taskView(ctx, task)
}

func (s *Service) DeleteComment(ctx context.Context, actor Session, taskID, commentID string) (TaskView, error) {
	task, err := s.memberTask(ctx, actor, taskID)
	if err != nil {
		return TaskView{}, err
	}
	comment, ok := task.Comments.Find(commentID)
	if !ok {
		return TaskView{}, notFound("Comment not found")
	}
	if comment.AuthorID != actor.UserID {
		return TaskView{}, notAuthorized("Only the comment author may delete it")
	}
	task.Comments.Remove(commentID)
	if err := s.replaceComments(ctx, task); err != nil {
		return TaskView{}, err
	}
	s.publish(ctx, notify.KeyTaskUpdated, task.ProjectID, task.ID, actor)
	return s.taskView(ctx, task)
}

func (s *Service) replaceComments(ctx context.Context, task store.Task) error {
	err := s.store.ReplaceTaskComments(ctx, task.ID, task.Comments)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("Task not found")
	}
	if err != nil {
		return fmt.Errorf("store comments: %w", err)
	}
	return nil
}

// memberTask loads the task and authorizes the actor against the project the
// task is stored under, not whatever project the payload claims.
func (s *Service) memberTask(ctx context.Context, actor Session, taskID string) (store.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Task{}, notFound("Task not found")
	}
	if err != nil {
		return store.Task{}, fmt.Errorf("load task %s: %w", taskID, err)
	}
	if _, err := s.requireMembership(ctx, task.ProjectID, actor); err != nil {
		return store.Task{}, err
	}
	return task, nil
}

// resolveAuthor maps the createdBy username to a user ID, defaulting to the
// actor when the field is blank.
func (s *Service) resolveAuthor(ctx context.Context, username string, actor Session) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return actor.UserID, nil
	}
	user, err := s.directory.FindByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", resolutionFailed(fmt.Sprintf("user %q not found", username), nil)
	}
	if err != nil {
		return "", fmt.Errorf("resolve author %q: %w", username, err)
	}
	return user.ID, nil
}
