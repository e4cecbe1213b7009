// Package members lists user profiles for browsing.
package members

import (
	"context"
	"errors"
	"go.uber.org/zap"
	"social-backend/internal/pagination"
	"social-backend/internal/storage"
)

var ErrNotFound = errors.New("user not found")

// Repository is the persistence needed by Service
type Repository interface {
	UserByUsername(ctx context.Context, username string) (storage.User, error)
	CountMembers(ctx context.Context, exclude int64) (int, error)
	ListMembers(ctx context.Context, exclude int64, order storage.MemberOrder, offset, limit int) ([]storage.User, error)
}

type Service struct {
	logger *zap.SugaredLogger
	repo   Repository
}

func NewService(logger *zap.SugaredLogger, repo Repository) *Service {
	return &Service{logger: logger, repo: repo}
}

// ParseOrder maps request token to a sort key; anything but "created" sorts by last activity
func ParseOrder(token string) storage.MemberOrder {
	if storage.MemberOrder(token) == storage.MembersByCreated {
		return storage.MembersByCreated
	}
	return storage.MembersByLastActive
}

// List returns a page of every user except currentID, most recent first
func (s *Service) List(ctx context.Context, currentID int64, order storage.MemberOrder, page, pageSize int) (pagination.Page[storage.User], error) {
	src := pagination.FuncSource[storage.User]{
		CountFunc: func(ctx context.Context) (int, error) {
			return s.repo.CountMembers(ctx, currentID)
		},
		SliceFunc: func(ctx context.Context, offset, limit int) ([]storage.User, error) {
			return s.repo.ListMembers(ctx, currentID, order, offset, limit)
		},
	}
	return pagination.Paginate[storage.User](ctx, src, page, pageSize)
}

// Profile returns the user with provided username ignoring case
func (s *Service) Profile(ctx context.Context, username string) (storage.User, error) {
	u, err := s.repo.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			return storage.User{}, ErrNotFound
		}
		return storage.User{}, err
	}
	return u, nil
}
