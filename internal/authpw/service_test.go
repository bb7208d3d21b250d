package authpw

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"taskboard/api/internal/store"
)

type fakeUserStore struct {
	byEmail    map[string]store.User
	byUsername map[string]store.User
	created    []store.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byEmail:    map[string]store.User{},
		byUsername: map[string]store.User{},
	}
}

func (f *fakeUserStore) CreateUser(ctx context.Context, user store.User) error {
	f.created = append(f.created, user)
	f.byEmail[user.Email] = user
	f.byUsername[user.Username] = user
	return nil
}

func (f *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserStore) GetUserByUsername(ctx context.Context, username string) (store.User, error) {
	user, ok := f.byUsername[username]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func TestRegisterAndLogin(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)

	user, err := svc.Register(context.Background(), "Alice", "Alice@Example.com", "alice", "hunter22")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email = %q, want lowercased", user.Email)
	}
	if user.PasswordHash == "" || user.PasswordHash == "hunter22" {
		t.Fatal("password stored without hashing")
	}
	if user.Role != store.RoleUser {
		t.Fatalf("role = %q, want user", user.Role)
	}

	logged, err := svc.Login(context.Background(), "alice@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if logged.ID != user.ID {
		t.Fatalf("logged in as %q, want %q", logged.ID, user.ID)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())
	if _, err := svc.Register(context.Background(), "Alice", "a@example.com", "alice", "12345"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("Register error = %v, want ErrWeakPassword", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)
	if _, err := svc.Register(context.Background(), "Alice", "a@example.com", "alice", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Register(context.Background(), "Other", "a@example.com", "other", "hunter22"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate email error = %v, want ErrEmailTaken", err)
	}
	if _, err := svc.Register(context.Background(), "Other", "b@example.com", "alice", "hunter22"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate username error = %v, want ErrUsernameTaken", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)
	if _, err := svc.Register(context.Background(), "Alice", "a@example.com", "alice", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Login(context.Background(), "a@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(context.Background(), "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email error = %v, want ErrInvalidCredentials", err)
	}
}

func TestExternalFlow(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)

	if _, err := svc.LoginExternal(context.Background(), "ext@example.com"); !errors.Is(err, ErrNeedsUsername) {
		t.Fatalf("first external login error = %v, want ErrNeedsUsername", err)
	}

	user, err := svc.CompleteExternal(context.Background(), "Ext User", "ext@example.com", "extuser")
	if err != nil {
		t.Fatalf("CompleteExternal: %v", err)
	}
	if !user.IsExternal || user.PasswordHash != "" {
		t.Fatalf("external user = %+v, want no password hash", user)
	}

	logged, err := svc.LoginExternal(context.Background(), "ext@example.com")
	if err != nil {
		t.Fatalf("second external login: %v", err)
	}
	if logged.ID != user.ID {
		t.Fatalf("logged in as %q, want %q", logged.ID, user.ID)
	}

	// a password login must never succeed against an external account
	if _, err := svc.Login(context.Background(), "ext@example.com", "anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("password login on external account error = %v, want ErrInvalidCredentials", err)
	}
}

func TestUsernameAvailable(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)
	if _, err := svc.Register(context.Background(), "Alice", "a@example.com", "alice", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	free, err := svc.UsernameAvailable(context.Background(), "alice")
	if err != nil {
		t.Fatalf("UsernameAvailable: %v", err)
	}
	if free {
		t.Fatal("taken username reported available")
	}
	free, err = svc.UsernameAvailable(context.Background(), "brand-new")
	if err != nil {
		t.Fatalf("UsernameAvailable: %v", err)
	}
	if !free {
		t.Fatal("fresh username reported taken")
	}
}
