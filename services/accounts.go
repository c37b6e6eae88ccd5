package services

import (
	"context"

	"github.com/snap-point/social-api/apperrors"
	"github.com/snap-point/social-api/logger"
	"github.com/snap-point/social-api/models"
	"github.com/snap-point/social-api/repository"
	"go.uber.org/zap"
)

type AccountService struct {
	store  repository.Store
	assets AssetStore
	stats  StatsCache
}

// DeleteUser removes username's account. Only the owner or an admin may do
// it. The avatar goes first; if that fails nothing else is touched. The
// database cleanup, including every follow and block row naming the user,
// is one transaction.
func (s *AccountService) DeleteUser(ctx context.Context, actorID uint, username string) error {
	target, err := findByUsername(ctx, s.store, username)
	if err != nil {
		return appError(err)
	}
	actor, err := findByID(ctx, s.store, actorID)
	if err != nil {
		return appError(err)
	}
	if actor.ID != target.ID && !actor.IsAdmin {
		return apperrors.NewForbidden("User can only delete their own account")
	}

	if target.AvatarKey != "" {
		if err := s.assets.DeleteAsset(ctx, target.AvatarKey); err != nil {
			return apperrors.NewStorageUnavailable(err)
		}
	}

	var neighbours []uint
	var mediaKeys []string
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.LockUsers(ctx, target.ID); err != nil {
			return err
		}
		if err := tx.LoadRelations(ctx, target); err != nil {
			return err
		}
		neighbours = append(models.IDs(target.Followers), models.IDs(target.Followings)...)

		posts, err := tx.PostsByOwner(ctx, target.ID)
		if err != nil {
			return err
		}
		for _, p := range posts {
			mediaKeys = append(mediaKeys, p.MediaKeys...)
		}
		return tx.DeleteUserCascade(ctx, target.ID)
	})
	if err != nil {
		return appError(err)
	}

	for _, key := range mediaKeys {
		if err := s.assets.DeleteAsset(ctx, key); err != nil {
			logger.Get().Warn("Failed to delete post media", zap.String("key", key), zap.Error(err))
		}
	}
	s.stats.Invalidate(ctx, append(neighbours, target.ID)...)

	logger.Get().Info("User deleted",
		zap.Uint("user_id", target.ID),
		zap.Uint("actor_id", actor.ID),
		zap.Int("media_assets", len(mediaKeys)),
	)
	return nil
}
