// Package app wires the domain services behind the HTTP API.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/authpw"
	"taskboard/api/internal/authz"
	"taskboard/api/internal/identity"
	"taskboard/api/internal/notify"
	"taskboard/api/internal/search"
	"taskboard/api/internal/session"
	"taskboard/api/internal/store"
)

// dataStore is everything the service needs from persistence.
type dataStore interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user store.User) error
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
	GetUsersByUsernames(ctx context.Context, usernames []string) ([]store.User, error)
	GetUsersByIDs(ctx context.Context, userIDs []string) ([]store.User, error)

	CreateProject(ctx context.Context, project store.Project) error
	GetProject(ctx context.Context, projectID string) (store.Project, error)
	ListProjectsOwnedBy(ctx context.Context, userID string) ([]store.Project, error)
	ListProjectsCollaborating(ctx context.Context, userID string) ([]store.Project, error)
	UpdateProject(ctx context.Context, project store.Project) error
	RemoveCollaborator(ctx context.Context, projectID, userID string) error
	DeleteProject(ctx context.Context, projectID string) error

	CreateTask(ctx context.Context, task store.Task) error
	GetTask(ctx context.Context, taskID string) (store.Task, error)
	ListTasksByProjects(ctx context.Context, projectIDs []string) ([]store.Task, error)
	ReplaceTask(ctx context.Context, task store.Task) (store.Task, error)
	UpdateTaskStatus(ctx context.Context, taskID string, status store.TaskStatus) (store.Task, error)
	ReplaceTaskComments(ctx context.Context, taskID string, comments store.CommentList) error
	DeleteTask(ctx context.Context, taskID string) error
}

// Session is the authenticated caller, decoded from the access token.
type Session struct {
	UserID   string
	Username string
	Name     string
	Role     store.Role
}

// TokenPair is what every successful sign-in returns.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	Role         string `json:"role"`
}

type Service struct {
	store     dataStore
	sessions  session.Store
	authz     *authz.Engine
	directory identity.Directory
	resolver  *identity.Resolver
	passwords *authpw.Service
	tokens    *auth.TokenService
	search    *search.Service
	events    *notify.Publisher
	log       *zap.Logger
	newID     func(prefix string) string
}

type ServiceDeps struct {
	Store     dataStore
	Sessions  session.Store
	Authz     *authz.Engine
	Directory identity.Directory
	Resolver  *identity.Resolver
	Passwords *authpw.Service
	Tokens    *auth.TokenService
	Search    *search.Service
	Events    *notify.Publisher
	Log       *zap.Logger
	NewID     func(prefix string) string
}

func NewService(deps ServiceDeps) *Service {
	return &Service{
		store:     deps.Store,
		sessions:  deps.Sessions,
		authz:     deps.Authz,
		directory: deps.Directory,
		resolver:  deps.Resolver,
		passwords: deps.Passwords,
		tokens:    deps.Tokens,
		search:    deps.Search,
		events:    deps.Events,
		log:       deps.Log,
		newID:     deps.NewID,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ---- sessions ----

// SessionFromToken authenticates a bearer token, rejecting revoked ones.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := s.tokens.ParseAccess(token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, fmt.Errorf("check token revocation: %w", err)
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}
	return Session{
		UserID:   claims.Subject,
		Username: claims.Username,
		Name:     claims.Name,
		Role:     claims.Role,
	}, nil
}

func (s *Service) issueTokens(ctx context.Context, user store.User) (TokenPair, error) {
	access, _, err := s.tokens.IssueAccess(user)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, expiresAt, err := s.tokens.IssueRefresh()
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, expiresAt); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		Token:        access,
		RefreshToken: refresh,
		UserID:       user.ID,
		Username:     user.Username,
		Name:         user.Name,
		Role:         string(user.Role),
	}, nil
}

// Refresh rotates a refresh token into a fresh token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	hash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, hash)
	if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, sql.ErrNoRows) {
		return TokenPair{}, auth.ErrInvalidToken
	}
	if err != nil {
		return TokenPair{}, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return TokenPair{}, auth.ErrInvalidToken
	}
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, hash); err != nil {
		return TokenPair{}, err
	}
	return s.issueTokens(ctx, user)
}

// Logout revokes the refresh token and blacklists the access token.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if refreshToken != "" {
		if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			s.log.Warn("revoke refresh session", zap.Error(err))
		}
	}
	if accessToken != "" {
		if claims, err := s.tokens.ParseAccess(accessToken); err == nil && claims.ExpiresAt != nil {
			if err := s.sessions.RevokeAccessToken(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
				s.log.Warn("revoke access token", zap.Error(err))
			}
		}
	}
	return nil
}

// ---- registration and sign-in ----

func (s *Service) Register(ctx context.Context, name, email, username, password string) (TokenPair, error) {
	user, err := s.passwords.Register(ctx, name, email, username, password)
	if err != nil {
		return TokenPair{}, mapAuthError(err)
	}
	if err := s.search.IndexUser(ctx, user.ID, user.Name, user.Username); err != nil {
		s.log.Warn("index user", zap.String("user_id", user.ID), zap.Error(err))
	}
	return s.issueTokens(ctx, user)
}

func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	user, err := s.passwords.Login(ctx, email, password)
	if err != nil {
		return TokenPair{}, mapAuthError(err)
	}
	return s.issueTokens(ctx, user)
}

// ExternalLogin signs in an externally-authenticated email. On first contact
// the account does not exist yet: the client must resubmit with a username,
// which completes registration.
func (s *Service) ExternalLogin(ctx context.Context, name, email, username string) (TokenPair, error) {
	user, err := s.passwords.LoginExternal(ctx, email)
	if errors.Is(err, authpw.ErrNeedsUsername) {
		if strings.TrimSpace(username) == "" {
			return TokenPair{}, validationFailed("username required to complete registration", nil)
		}
		user, err = s.passwords.CompleteExternal(ctx, name, email, username)
		if err != nil {
			return TokenPair{}, mapAuthError(err)
		}
		if err := s.search.IndexUser(ctx, user.ID, user.Name, user.Username); err != nil {
			s.log.Warn("index user", zap.String("user_id", user.ID), zap.Error(err))
		}
		return s.issueTokens(ctx, user)
	}
	if err != nil {
		return TokenPair{}, mapAuthError(err)
	}
	return s.issueTokens(ctx, user)
}

// Renew issues a fresh token pair for an already-authenticated session.
func (s *Service) Renew(ctx context.Context, actor Session) (TokenPair, error) {
	user, err := s.store.GetUserByID(ctx, actor.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return TokenPair{}, auth.ErrInvalidToken
	}
	if err != nil {
		return TokenPair{}, err
	}
	return s.issueTokens(ctx, user)
}

func (s *Service) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	if strings.TrimSpace(username) == "" {
		return false, validationFailed("username is required", nil)
	}
	return s.passwords.UsernameAvailable(ctx, username)
}

// SearchUsers finds accounts by partial username or name.
func (s *Service) SearchUsers(ctx context.Context, query string, limit int) ([]search.Result, error) {
	return s.search.Users(ctx, query, limit)
}

func mapAuthError(err error) error {
	switch {
	case errors.Is(err, authpw.ErrEmailTaken):
		return domainError(http.StatusConflict, "VALIDATION_FAILED", "email already registered", nil)
	case errors.Is(err, authpw.ErrUsernameTaken):
		return domainError(http.StatusConflict, "VALIDATION_FAILED", "username already taken", nil)
	case errors.Is(err, authpw.ErrWeakPassword):
		return validationFailed("password must be at least 6 characters", nil)
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return domainError(http.StatusUnauthorized, "NOT_AUTHORIZED", "invalid credentials", nil)
	default:
		return err
	}
}

// requireMembership authorizes the actor against the project and folds the
// decision into the error taxonomy. A store failure stays an internal error;
// it is never reported as a denial.
func (s *Service) requireMembership(ctx context.Context, projectID string, actor Session) (store.Project, error) {
	decision, err := s.authz.Authorize(ctx, projectID, actor.UserID)
	if err != nil {
		return store.Project{}, fmt.Errorf("authorize project %s: %w", projectID, err)
	}
	switch decision.Reason {
	case authz.ReasonProjectNotFound:
		return store.Project{}, notFound("Project not found")
	case authz.ReasonNotAuthorized:
		return store.Project{}, notAuthorized("Not a member of this project")
	}
	return decision.Project, nil
}

func (s *Service) publish(ctx context.Context, key, projectID, taskID string, actor Session) {
	s.events.Publish(ctx, notify.Event{
		Key:        key,
		ProjectID:  projectID,
		TaskID:     taskID,
		ActorID:    actor.UserID,
		OccurredAt: time.Now().UTC(),
	})
}
