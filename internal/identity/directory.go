// Package identity looks up users and resolves comment authors from
// usernames to stored user IDs.
package identity

import (
	"context"

	"taskboard/api/internal/store"
)

// Directory answers user lookups by username or ID.
type Directory interface {
	FindByUsername(ctx context.Context, username string) (store.User, error)
	FindByID(ctx context.Context, userID string) (store.User, error)
	FindManyByUsernames(ctx context.Context, usernames []string) ([]store.User, error)
}

// UserSource is the slice of the store a directory needs.
type UserSource interface {
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetUsersByUsernames(ctx context.Context, usernames []string) ([]store.User, error)
}

// StoreDirectory serves lookups straight from the store.
type StoreDirectory struct {
	users UserSource
}

func NewStoreDirectory(users UserSource) *StoreDirectory {
	return &StoreDirectory{users: users}
}

func (d *StoreDirectory) FindByUsername(ctx context.Context, username string) (store.User, error) {
	return d.users.GetUserByUsername(ctx, username)
}

func (d *StoreDirectory) FindByID(ctx context.Context, userID string) (store.User, error) {
	return d.users.GetUserByID(ctx, userID)
}

func (d *StoreDirectory) FindManyByUsernames(ctx context.Context, usernames []string) ([]store.User, error) {
	return d.users.GetUsersByUsernames(ctx, usernames)
}
