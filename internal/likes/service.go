// Package likes implements the directed "like" association between users.
package likes

import (
	"context"
	"errors"
	"go.uber.org/zap"
	"social-backend/internal/metrics"
	"social-backend/internal/pagination"
	"social-backend/internal/storage"
)

var (
	ErrSelfLike = errors.New("cannot like yourself")
	ErrNotFound = errors.New("user not found")
)

// Repository is the persistence needed by Service
type Repository interface {
	ToggleLike(ctx context.Context, source, target int64) (bool, error)
	CountLikedUsers(ctx context.Context, user int64, p storage.LikePredicate) (int, error)
	ListLikedUsers(ctx context.Context, user int64, p storage.LikePredicate, offset, limit int) ([]storage.User, error)
	LikedIDs(ctx context.Context, user int64) ([]int64, error)
}

type Service struct {
	logger *zap.SugaredLogger
	repo   Repository
}

func NewService(logger *zap.SugaredLogger, repo Repository) *Service {
	return &Service{logger: logger, repo: repo}
}

// ParsePredicate maps request token to a predicate; anything but liked and likedBy selects mutual likes
func ParsePredicate(token string) storage.LikePredicate {
	switch storage.LikePredicate(token) {
	case storage.LikesLiked:
		return storage.LikesLiked
	case storage.LikesLikedBy:
		return storage.LikesLikedBy
	default:
		return storage.LikesMutual
	}
}

// ToggleLike flips the like edge from source to target and returns whether it exists afterwards
func (s *Service) ToggleLike(ctx context.Context, sourceID, targetID int64) (bool, error) {
	if sourceID == targetID {
		return false, ErrSelfLike
	}

	liked, err := s.repo.ToggleLike(ctx, sourceID, targetID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			return false, ErrNotFound
		}
		return false, err
	}

	result := "unliked"
	if liked {
		result = "liked"
	}
	metrics.LikesToggled.WithLabelValues(result).Inc()
	s.logger.Debugf("User (id: %d) %s user (id: %d)", sourceID, result, targetID)

	return liked, nil
}

// List returns a page of users related to userID by predicate ordered by username
func (s *Service) List(ctx context.Context, userID int64, predicate storage.LikePredicate, page, pageSize int) (pagination.Page[storage.User], error) {
	src := pagination.FuncSource[storage.User]{
		CountFunc: func(ctx context.Context) (int, error) {
			return s.repo.CountLikedUsers(ctx, userID, predicate)
		},
		SliceFunc: func(ctx context.Context, offset, limit int) ([]storage.User, error) {
			return s.repo.ListLikedUsers(ctx, userID, predicate, offset, limit)
		},
	}
	return pagination.Paginate[storage.User](ctx, src, page, pageSize)
}

// ListLiked returns users liked by userID
func (s *Service) ListLiked(ctx context.Context, userID int64, page, pageSize int) (pagination.Page[storage.User], error) {
	return s.List(ctx, userID, storage.LikesLiked, page, pageSize)
}

// ListLikedBy returns users who liked userID
func (s *Service) ListLikedBy(ctx context.Context, userID int64, page, pageSize int) (pagination.Page[storage.User], error) {
	return s.List(ctx, userID, storage.LikesLikedBy, page, pageSize)
}

// ListMutual returns users who liked userID and were liked back
func (s *Service) ListMutual(ctx context.Context, userID int64, page, pageSize int) (pagination.Page[storage.User], error) {
	return s.List(ctx, userID, storage.LikesMutual, page, pageSize)
}

// LikedIDs returns ids of users liked by userID
func (s *Service) LikedIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids, err := s.repo.LikedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}
