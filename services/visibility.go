package services

import (
	"context"

	"github.com/snap-point/social-api/apperrors"
	"github.com/snap-point/social-api/models"
	"github.com/snap-point/social-api/repository"
)

const searchLimit = 20

// VisibilityService decides what a viewer may see of other users.
type VisibilityService struct {
	store repository.Store
	stats StatsCache
}

// ProfileView is a user's profile as seen by a particular viewer.
type ProfileView struct {
	User            *models.User  `json:"user"`
	Posts           []models.Post `json:"posts,omitempty"`
	CanView         bool          `json:"canView"`
	FollowersCount  int64         `json:"followersCount"`
	FollowingsCount int64         `json:"followingsCount"`
}

// CanView is false when either user has blocked the other.
func (s *VisibilityService) CanView(ctx context.Context, viewerID, targetID uint) (bool, error) {
	if viewerID == targetID {
		return true, nil
	}
	state, err := s.store.Relationship(ctx, viewerID, targetID)
	if err != nil {
		return false, appError(err)
	}
	return !state.Blocked(), nil
}

// Profile always returns the user document. Posts are included only when
// the viewer can see the target; block lists only for the owner.
func (s *VisibilityService) Profile(ctx context.Context, viewerID uint, username string) (*ProfileView, error) {
	target, err := findByUsername(ctx, s.store, username)
	if err != nil {
		return nil, appError(err)
	}
	if err := s.store.LoadRelations(ctx, target); err != nil {
		return nil, appError(err)
	}
	if viewerID != target.ID {
		target.BlockedUsers, target.BlockedByUsers = nil, nil
	}

	canView, err := s.CanView(ctx, viewerID, target.ID)
	if err != nil {
		return nil, err
	}

	view := &ProfileView{User: target, CanView: canView}
	if canView {
		posts, err := s.store.PostsByOwner(ctx, target.ID)
		if err != nil {
			return nil, appError(err)
		}
		view.Posts = posts
	}

	view.FollowersCount, view.FollowingsCount, err = s.Counts(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Counts reads follower and following counts through the stats cache. A
// miss is filled only if no relationship change invalidated the user while
// the counts were read.
func (s *VisibilityService) Counts(ctx context.Context, userID uint) (int64, int64, error) {
	if followers, followings, ok := s.stats.Get(ctx, userID); ok {
		return followers, followings, nil
	}
	generation, cacheable := s.stats.Generation(ctx, userID)
	followers, followings, err := s.store.CountRelations(ctx, userID)
	if err != nil {
		return 0, 0, appError(err)
	}
	if cacheable {
		s.stats.Set(ctx, userID, generation, followers, followings)
	}
	return followers, followings, nil
}

// SearchUsers returns up to 20 users whose username or name contains query,
// never one that is blocked with the viewer in either direction.
func (s *VisibilityService) SearchUsers(ctx context.Context, viewerID uint, query string) ([]models.User, error) {
	users, err := s.store.SearchUsers(ctx, query, viewerID, searchLimit)
	if err != nil {
		return nil, appError(err)
	}
	if len(users) == 0 {
		return nil, apperrors.New(apperrors.ErrorTypeUsersNotFound, "Users not found")
	}
	return users, nil
}

func (s *VisibilityService) Followers(ctx context.Context, viewerID uint, username string) ([]models.User, error) {
	target, err := findByUsername(ctx, s.store, username)
	if err != nil {
		return nil, appError(err)
	}
	users, err := s.store.ListFollowers(ctx, target.ID, viewerID)
	return users, appError(err)
}

func (s *VisibilityService) Followings(ctx context.Context, viewerID uint, username string) ([]models.User, error) {
	target, err := findByUsername(ctx, s.store, username)
	if err != nil {
		return nil, appError(err)
	}
	users, err := s.store.ListFollowings(ctx, target.ID, viewerID)
	return users, appError(err)
}
