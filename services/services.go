// Package services holds the social graph rules: relationship transitions,
// visibility filtering, the notification feed and account lifecycle.
// Handlers call these; nothing here knows about HTTP.
package services

import (
	"context"
	"errors"

	"github.com/snap-point/social-api/apperrors"
	"github.com/snap-point/social-api/config"
	"github.com/snap-point/social-api/models"
	"github.com/snap-point/social-api/repository"
	"github.com/snap-point/social-api/storage"
	"github.com/snap-point/social-api/utils"
)

// Notifier pushes a message to a user's live connections, if any.
type Notifier interface {
	Push(ctx context.Context, userID uint, message string)
}

// AssetStore removes uploaded files and hands out upload URLs.
type AssetStore interface {
	DeleteAsset(ctx context.Context, key string) error
	PresignAvatarUpload(ctx context.Context, userID uint, fileName, contentType string, size int64) (*storage.PresignedUpload, error)
}

// StatsCache caches follower and following counts per user. Generation
// changes on every Invalidate of a user; Set only stores counts computed
// under the generation that is still current.
type StatsCache interface {
	Get(ctx context.Context, userID uint) (followers, followings int64, ok bool)
	Generation(ctx context.Context, userID uint) (generation int64, ok bool)
	Set(ctx context.Context, userID uint, generation, followers, followings int64)
	Invalidate(ctx context.Context, userIDs ...uint)
}

type Dependencies struct {
	Store    repository.Store
	Notifier Notifier
	Assets   AssetStore
	Stats    StatsCache
	Tokens   *utils.TokenIssuer
	Google   *config.GoogleConfig
}

type Services struct {
	Relationships *RelationshipService
	Visibility    *VisibilityService
	Notifications *NotificationService
	Accounts      *AccountService
	Profiles      *ProfileService
	Auth          *AuthService
	Posts         *PostService
}

func New(deps Dependencies) *Services {
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Assets == nil {
		deps.Assets = storage.NopStore{}
	}
	if deps.Stats == nil {
		deps.Stats = nopStats{}
	}

	visibility := &VisibilityService{store: deps.Store, stats: deps.Stats}
	return &Services{
		Relationships: &RelationshipService{store: deps.Store, notifier: deps.Notifier, stats: deps.Stats},
		Visibility:    visibility,
		Notifications: &NotificationService{store: deps.Store},
		Accounts:      &AccountService{store: deps.Store, assets: deps.Assets, stats: deps.Stats},
		Profiles:      &ProfileService{store: deps.Store, assets: deps.Assets, visibility: visibility},
		Auth:          &AuthService{store: deps.Store, tokens: deps.Tokens, google: deps.Google},
		Posts:         &PostService{store: deps.Store, visibility: visibility},
	}
}

const msgUserNotFound = "User not found"

// appError turns whatever a store call returned into a typed error. Typed
// errors pass through untouched.
func appError(err error) error {
	if err == nil {
		return nil
	}
	if apperrors.TypeOf(err) != "" {
		return err
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(msgUserNotFound)
	}
	return apperrors.NewStorageUnavailable(err)
}

func findByUsername(ctx context.Context, store repository.Store, username string) (*models.User, error) {
	user, err := store.FindUserByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound(msgUserNotFound)
	}
	return user, err
}

func findByID(ctx context.Context, store repository.Store, id uint) (*models.User, error) {
	user, err := store.FindUserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound(msgUserNotFound)
	}
	return user, err
}

type nopNotifier struct{}

func (nopNotifier) Push(context.Context, uint, string) {}

type nopStats struct{}

func (nopStats) Get(context.Context, uint) (int64, int64, bool) { return 0, 0, false }
func (nopStats) Generation(context.Context, uint) (int64, bool) { return 0, false }
func (nopStats) Set(context.Context, uint, int64, int64, int64) {}
func (nopStats) Invalidate(context.Context, ...uint) {}
