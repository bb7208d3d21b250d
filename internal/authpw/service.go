// Package authpw handles password credentials and account registration.
package authpw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password too short")
	// ErrNeedsUsername means an external sign-in hit an unknown email; the
	// client must come back with a username to finish registration.
	ErrNeedsUsername = errors.New("registration incomplete, username required")
)

const minPasswordLen = 6

type userStore interface {
	CreateUser(ctx context.Context, user store.User) error
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
}

type Service struct {
	store userStore
}

func NewService(st userStore) *Service {
	return &Service{store: st}
}

// Register creates a local account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, name, email, username, password string) (store.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if len(password) < minPasswordLen {
		return store.User{}, ErrWeakPassword
	}
	if err := s.checkAvailable(ctx, email, username); err != nil {
		return store.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := store.User{
		ID:           util.NewID("usr"),
		Name:         name,
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Role:         store.RoleUser,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return store.User{}, err
	}
	return user, nil
}

// Login checks the password against the stored hash. Unknown emails and bad
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (store.User, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, err
	}
	if user.IsExternal {
		return store.User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// LoginExternal signs in an account backed by an external identity provider.
// An unknown email is not an error in itself: the caller gets ErrNeedsUsername
// and should retry through CompleteExternal with a chosen username.
func (s *Service) LoginExternal(ctx context.Context, email string) (store.User, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, ErrNeedsUsername
	}
	if err != nil {
		return store.User{}, err
	}
	if !user.IsExternal {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// CompleteExternal finishes an external sign-up once the client has chosen a
// username. External accounts carry no local password.
func (s *Service) CompleteExternal(ctx context.Context, name, email, username string) (store.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if err := s.checkAvailable(ctx, email, username); err != nil {
		return store.User{}, err
	}
	user := store.User{
		ID:         util.NewID("usr"),
		Name:       name,
		Email:      email,
		Username:   username,
		Role:       store.RoleUser,
		IsExternal: true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return store.User{}, err
	}
	return user, nil
}

// UsernameAvailable reports whether no account holds the username yet.
func (s *Service) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	_, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func (s *Service) checkAvailable(ctx context.Context, email, username string) error {
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return ErrUsernameTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return nil
}
