package services

import (
	"context"
	"errors"

	"github.com/snap-point/social-api/apperrors"
	"github.com/snap-point/social-api/logger"
	"github.com/snap-point/social-api/models"
	"github.com/snap-point/social-api/monitoring"
	"github.com/snap-point/social-api/repository"
	"go.uber.org/zap"
)

const (
	OpFollow   = "follow"
	OpUnfollow = "unfollow"
	OpBlock    = "block"
	OpUnblock  = "unblock"
)

// RelationshipService applies follow, unfollow, block and unblock. Each
// call is one transaction: both users are locked, preconditions are read
// under the lock and every write commits or none does.
type RelationshipService struct {
	store    repository.Store
	notifier Notifier
	stats    StatsCache
}

// pair resolves the target by username and the actor by id, in that
// order, then locks both rows.
func (s *RelationshipService) pair(ctx context.Context, tx repository.Store, actorID uint, username, selfMessage string) (*models.User, *models.User, error) {
	target, err := findByUsername(ctx, tx, username)
	if err != nil {
		return nil, nil, err
	}
	actor, err := findByID(ctx, tx, actorID)
	if err != nil {
		return nil, nil, err
	}
	if actor.Username == target.Username {
		return nil, nil, apperrors.NewSelfReference(selfMessage)
	}
	if err := tx.LockUsers(ctx, actor.ID, target.ID); err != nil {
		return nil, nil, err
	}
	return actor, target, nil
}

// Follow makes actorID follow username and notifies the target.
func (s *RelationshipService) Follow(ctx context.Context, actorID uint, username string) error {
	var actor, target *models.User
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		actor, target, err = s.pair(ctx, tx, actorID, username, "You can not follow yourself")
		if err != nil {
			return err
		}

		state, err := tx.Relationship(ctx, actor.ID, target.ID)
		if err != nil {
			return err
		}
		if state.Following {
			return apperrors.New(apperrors.ErrorTypeAlreadyFollowing, "User already followed")
		}
		if state.Blocked() {
			return apperrors.NewForbidden("You can not follow this user")
		}

		// Replace any leftover follow notification left without an edge.
		if _, err := tx.DeleteNotifications(ctx, followNotification(actor.ID, target.ID)); err != nil {
			return err
		}
		err = tx.CreateNotification(ctx, &models.Notification{
			SenderID:   actor.ID,
			ReceiverID: target.ID,
			Kind:       models.NotificationKindFollow,
			Text:       models.FollowText(actor.Username),
		})
		if err != nil {
			return err
		}

		if err := tx.AddFollow(ctx, actor.ID, target.ID); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.New(apperrors.ErrorTypeAlreadyFollowing, "User already followed")
			}
			return err
		}
		return nil
	})
	if err = s.finish(ctx, OpFollow, err); err != nil {
		return err
	}

	s.stats.Invalidate(ctx, actor.ID, target.ID)
	s.notifier.Push(ctx, target.ID, models.FollowText(actor.Username))
	return nil
}

// Unfollow removes the actor's follow edge and the notification it created.
func (s *RelationshipService) Unfollow(ctx context.Context, actorID uint, username string) error {
	var actor, target *models.User
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		actor, target, err = s.pair(ctx, tx, actorID, username, "You can not unfollow yourself")
		if err != nil {
			return err
		}

		state, err := tx.Relationship(ctx, actor.ID, target.ID)
		if err != nil {
			return err
		}
		if !state.Following {
			return apperrors.New(apperrors.ErrorTypeNotFollowing, "User already unfollowed")
		}

		if _, err := tx.DeleteNotifications(ctx, followNotification(actor.ID, target.ID)); err != nil {
			return err
		}
		return tx.RemoveFollow(ctx, actor.ID, target.ID)
	})
	if err = s.finish(ctx, OpUnfollow, err); err != nil {
		return err
	}

	s.stats.Invalidate(ctx, actor.ID, target.ID)
	return nil
}

// Block severs follows in both directions and records the block.
func (s *RelationshipService) Block(ctx context.Context, actorID uint, username string) error {
	var actor, target *models.User
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		actor, target, err = s.pair(ctx, tx, actorID, username, "You can not block youself")
		if err != nil {
			return err
		}

		state, err := tx.Relationship(ctx, actor.ID, target.ID)
		if err != nil {
			return err
		}
		if state.Blocking {
			return apperrors.New(apperrors.ErrorTypeAlreadyBlocked, "User already blocked")
		}

		if state.Following {
			if err := s.dropFollow(ctx, tx, actor.ID, target.ID); err != nil {
				return err
			}
		}
		if state.FollowedBy {
			if err := s.dropFollow(ctx, tx, target.ID, actor.ID); err != nil {
				return err
			}
		}
		return tx.AddBlock(ctx, actor.ID, target.ID)
	})
	if err = s.finish(ctx, OpBlock, err); err != nil {
		return err
	}

	s.stats.Invalidate(ctx, actor.ID, target.ID)
	return nil
}

// Unblock removes the block. Follows severed by it are not restored.
func (s *RelationshipService) Unblock(ctx context.Context, actorID uint, username string) error {
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		actor, target, err := s.pair(ctx, tx, actorID, username, "You can not unBlock youself")
		if err != nil {
			return err
		}

		state, err := tx.Relationship(ctx, actor.ID, target.ID)
		if err != nil {
			return err
		}
		if !state.Blocking {
			return apperrors.New(apperrors.ErrorTypeNotBlocked, "User already unBlocked")
		}
		return tx.RemoveBlock(ctx, actor.ID, target.ID)
	})
	return s.finish(ctx, OpUnblock, err)
}

func (s *RelationshipService) dropFollow(ctx context.Context, tx repository.Store, followerID, followingID uint) error {
	if _, err := tx.DeleteNotifications(ctx, followNotification(followerID, followingID)); err != nil {
		return err
	}
	return tx.RemoveFollow(ctx, followerID, followingID)
}

// finish records the outcome and converts err for callers.
func (s *RelationshipService) finish(ctx context.Context, op string, err error) error {
	if err == nil {
		monitoring.RelationshipOperation(op, "ok")
		return nil
	}

	err = appError(err)
	errType := apperrors.TypeOf(err)
	monitoring.RelationshipOperation(op, string(errType))
	if errType == apperrors.ErrorTypeStorageUnavailable {
		logger.Get().Error("Relationship operation failed", zap.String("op", op), zap.Error(err))
	}
	return err
}

func followNotification(senderID, receiverID uint) repository.NotificationFilter {
	return repository.NotificationFilter{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Kind:       models.NotificationKindFollow,
	}
}
