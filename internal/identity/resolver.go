package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taskboard/api/internal/store"
)

// CommentDraft is a comment as submitted by a client, with its author still
// named by username.
type CommentDraft struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Username string `json:"username"`
}

// ResolvedComment is a draft whose author username resolved to a user ID.
type ResolvedComment struct {
	ID       string
	Text     string
	AuthorID string
}

// Resolver maps comment author usernames to user IDs.
type Resolver struct {
	directory Directory
}

func NewResolver(directory Directory) *Resolver {
	return &Resolver{directory: directory}
}

// Resolve maps every draft's username to a user ID, preserving input order.
// Unknown usernames do not stop the walk: each produces a problem message
// naming both the username and the comment text, and the caller decides what
// to do with a partial result. A store failure aborts immediately.
func (r *Resolver) Resolve(ctx context.Context, drafts []CommentDraft) ([]ResolvedComment, []string, error) {
	resolved := make([]ResolvedComment, 0, len(drafts))
	problems := make([]string, 0)
	for _, draft := range drafts {
		user, err := r.directory.FindByUsername(ctx, draft.Username)
		if errors.Is(err, sql.ErrNoRows) {
			problems = append(problems, fmt.Sprintf("user %q not found for comment %q", draft.Username, draft.Text))
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("resolve comment author %q: %w", draft.Username, err)
		}
		resolved = append(resolved, ResolvedComment{
			ID:       draft.ID,
			Text:     draft.Text,
			AuthorID: user.ID,
		})
	}
	return resolved, problems, nil
}

// ResolveList is Resolve plus assembly into a stored comment list. Comments
// without an ID get one minted by newID.
func (r *Resolver) ResolveList(ctx context.Context, drafts []CommentDraft, newID func() string) (store.CommentList, []string, error) {
	resolved, problems, err := r.Resolve(ctx, drafts)
	if err != nil {
		return nil, nil, err
	}
	comments := make(store.CommentList, 0, len(resolved))
	for _, rc := range resolved {
		id := rc.ID
		if id == "" {
			id = newID()
		}
		comments = append(comments, store.Comment{ID: id, Text: rc.Text, AuthorID: rc.AuthorID})
	}
	return comments, problems, nil
}
