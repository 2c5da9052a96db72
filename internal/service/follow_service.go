package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"meetup-sync/internal/broker"
	"meetup-sync/internal/domain"
	"meetup-sync/internal/repository"
)

type FollowService struct {
	logger    *zap.Logger
	users     repository.UserRepository
	follows   repository.FollowRepository
	publisher broker.Publisher
}

func NewFollowService(
	logger *zap.Logger,
	users repository.UserRepository,
	follows repository.FollowRepository,
	publisher broker.Publisher,
) *FollowService {
	if publisher == nil {
		publisher = broker.NewNopPublisher()
	}
	return &FollowService{logger: logger, users: users, follows: follows, publisher: publisher}
}

type userFollowed struct {
	FollowerID string `json:"follower_id"`
	FolloweeID string `json:"followee_id"`
}

// Follow crea la relacion followerID -> followeeID. Repetirla no tiene efecto.
func (s *FollowService) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return ErrSelfFollow
	}
	if _, err := s.users.GetByID(ctx, followeeID); err != nil {
		return translateUserErr(err)
	}
	created, err := s.follows.Create(ctx, domain.Follow{
		FollowerID: followerID,
		FolloweeID: followeeID,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	payload := userFollowed{FollowerID: followerID, FolloweeID: followeeID}
	if err := s.publisher.Publish(ctx, broker.TopicUserFollowed, followeeID, payload); err != nil && s.logger != nil {
		s.logger.Warn("publish follow failed", zap.Error(err), zap.String("follower_id", followerID))
	}
	return nil
}

func (s *FollowService) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return s.follows.Delete(ctx, followerID, followeeID)
}

func (s *FollowService) Followers(ctx context.Context, userID string) ([]domain.PublicUser, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, translateUserErr(err)
	}
	return s.follows.ListFollowers(ctx, userID)
}

func (s *FollowService) Following(ctx context.Context, userID string) ([]domain.PublicUser, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, translateUserErr(err)
	}
	return s.follows.ListFollowing(ctx, userID)
}
