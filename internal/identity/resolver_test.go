package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"taskboard/api/internal/store"
)

type fakeDirectory struct {
	users   map[string]store.User
	findErr error
}

func (f *fakeDirectory) FindByUsername(ctx context.Context, username string) (store.User, error) {
	if f.findErr != nil {
		return store.User{}, f.findErr
	}
	user, ok := f.users[username]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeDirectory) FindByID(ctx context.Context, userID string) (store.User, error) {
	return store.User{}, sql.ErrNoRows
}

func (f *fakeDirectory) FindManyByUsernames(ctx context.Context, usernames []string) ([]store.User, error) {
	return nil, nil
}

func TestResolvePreservesOrder(t *testing.T) {
	resolver := NewResolver(&fakeDirectory{users: map[string]store.User{
		"alice": {ID: "usr_a", Username: "alice"},
		"bob":   {ID: "usr_b", Username: "bob"},
	}})

	resolved, problems, err := resolver.Resolve(context.Background(), []CommentDraft{
		{ID: "cmt_1", Text: "first pass looks fine", Username: "bob"},
		{ID: "cmt_2", Text: "needs a second reviewer", Username: "alice"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(problems) != 0 {
		t.Fatalf("problems = %v, want none", problems)
	}
	if len(resolved) != 2 {
		t.Fatalf("resolved %d comments, want 2", len(resolved))
	}
	if resolved[0].AuthorID != "usr_b" || resolved[1].AuthorID != "usr_a" {
		t.Fatalf("authors = %q, %q; want usr_b, usr_a", resolved[0].AuthorID, resolved[1].AuthorID)
	}
}

func TestResolveCollectsEveryUnknownUsername(t *testing.T) {
	resolver := NewResolver(&fakeDirectory{users: map[string]store.User{
		"alice": {ID: "usr_a", Username: "alice"},
	}})

	resolved, problems, err := resolver.Resolve(context.Background(), []CommentDraft{
		{Text: "who wrote this", Username: "ghost"},
		{Text: "looks good", Username: "alice"},
		{Text: "also orphaned", Username: "phantom"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resolved) != 1 || resolved[0].AuthorID != "usr_a" {
		t.Fatalf("resolved = %+v, want the one alice comment", resolved)
	}
	if len(problems) != 2 {
		t.Fatalf("problems = %v, want 2", problems)
	}
	if !strings.Contains(problems[0], `"ghost"`) || !strings.Contains(problems[0], `"who wrote this"`) {
		t.Fatalf("problem %q does not name the username and the comment", problems[0])
	}
	if !strings.Contains(problems[1], `"phantom"`) {
		t.Fatalf("problem %q does not name the second username", problems[1])
	}
}

func TestResolveStoreFailureAborts(t *testing.T) {
	storeErr := errors.New("connection refused")
	resolver := NewResolver(&fakeDirectory{findErr: storeErr})

	_, _, err := resolver.Resolve(context.Background(), []CommentDraft{
		{Text: "never resolved", Username: "alice"},
	})
	if !errors.Is(err, storeErr) {
		t.Fatalf("Resolve error = %v, want wrapped %v", err, storeErr)
	}
}

func TestResolveListMintsMissingIDs(t *testing.T) {
	resolver := NewResolver(&fakeDirectory{users: map[string]store.User{
		"alice": {ID: "usr_a", Username: "alice"},
	}})

	next := 0
	comments, problems, err := resolver.ResolveList(context.Background(), []CommentDraft{
		{ID: "cmt_kept", Text: "existing id survives", Username: "alice"},
		{Text: "fresh comment", Username: "alice"},
	}, func() string {
		next++
		return "cmt_minted"
	})
	if err != nil {
		t.Fatalf("ResolveList: %v", err)
	}
	if len(problems) != 0 {
		t.Fatalf("problems = %v, want none", problems)
	}
	if comments[0].ID != "cmt_kept" {
		t.Fatalf("comments[0].ID = %q, want cmt_kept", comments[0].ID)
	}
	if comments[1].ID != "cmt_minted" || next != 1 {
		t.Fatalf("comments[1].ID = %q (minted %d), want cmt_minted once", comments[1].ID, next)
	}
}
