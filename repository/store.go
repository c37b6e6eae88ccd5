package repository

import (
	"context"
	"errors"

	"github.com/snap-point/social-api/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// RelationState is the relationship between an ordered pair (A, B) as seen
// from A.
type RelationState struct {
	Following  bool // A follows B
	FollowedBy bool // B follows A
	Blocking   bool // A blocked B
	BlockedBy  bool // B blocked A
}

// Blocked reports whether a block exists in either direction.
func (r RelationState) Blocked() bool {
	return r.Blocking || r.BlockedBy
}

// NotificationFilter selects notifications to delete. Zero fields are
// ignored; an all-zero filter is rejected.
type NotificationFilter struct {
	SenderID   uint
	ReceiverID uint
	Kind       string
}

func (f NotificationFilter) empty() bool {
	return f.SenderID == 0 && f.ReceiverID == 0 && f.Kind == ""
}

var errEmptyFilter = errors.New("refusing to delete notifications with an empty filter")

// Store is the persistence boundary used by the services. Implementations
// must make Transaction all-or-nothing: if fn returns an error, nothing fn
// wrote is visible afterwards.
type Store interface {
	// Transaction runs fn against a transactional view of the store.
	Transaction(ctx context.Context, fn func(tx Store) error) error
	// LockUsers takes write locks on the given users until the enclosing
	// transaction ends.
	LockUsers(ctx context.Context, ids ...uint) error

	CreateUser(ctx context.Context, user *models.User) error
	SaveUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	// LoadRelations fills the four relationship sets of user.
	LoadRelations(ctx context.Context, user *models.User) error
	// DeleteUserCascade removes the user with its posts, comments,
	// notifications, refresh tokens and every follow and block row
	// touching it.
	DeleteUserCascade(ctx context.Context, id uint) error

	Relationship(ctx context.Context, a, b uint) (RelationState, error)
	AddFollow(ctx context.Context, followerID, followingID uint) error
	RemoveFollow(ctx context.Context, followerID, followingID uint) error
	AddBlock(ctx context.Context, blockerID, blockedID uint) error
	RemoveBlock(ctx context.Context, blockerID, blockedID uint) error
	CountRelations(ctx context.Context, userID uint) (followers, followings int64, err error)

	// SearchUsers matches query case-insensitively against username and
	// name and skips users in a block relationship with viewerID.
	SearchUsers(ctx context.Context, query string, viewerID uint, limit int) ([]models.User, error)
	ListFollowers(ctx context.Context, userID, viewerID uint) ([]models.User, error)
	ListFollowings(ctx context.Context, userID, viewerID uint) ([]models.User, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	DeleteNotifications(ctx context.Context, filter NotificationFilter) (int64, error)
	// FindNotifications returns the newest notifications for receiverID
	// with sender, receiver and post resolved.
	FindNotifications(ctx context.Context, receiverID uint, limit int) ([]models.Notification, error)

	CreatePost(ctx context.Context, post *models.Post) error
	FindPostByID(ctx context.Context, id uint) (*models.Post, error)
	PostsByOwner(ctx context.Context, ownerID uint) ([]models.Post, error)
	CreateComment(ctx context.Context, comment *models.Comment) error

	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) (int64, error)
}
