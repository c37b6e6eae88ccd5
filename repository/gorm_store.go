package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/snap-point/social-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// maxTxAttempts bounds retries of a transaction that lost a
	// serialization conflict or deadlock.
	maxTxAttempts = 3

	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// GormStore is the postgres-backed Store.
type GormStore struct {
	db   *gorm.DB
	inTx bool
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// Transaction retries fn on serialization failures and deadlocks. Any
// other error, including domain errors returned by fn, ends the attempt.
func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxInterval = 200 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&GormStore{db: tx, inTx: true})
		})
		if err != nil && !isRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(maxTxAttempts))
	return err
}

// LockUsers takes row locks on ids in ascending order. ErrNotFound is
// returned when any of them no longer exists.
func (s *GormStore) LockUsers(ctx context.Context, ids ...uint) error {
	unique := uniqueIDs(ids)
	var locked []models.User
	err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id IN ?", unique).
		Order("id").
		Find(&locked).Error
	if err != nil {
		return fmt.Errorf("lock users: %w", err)
	}
	if len(locked) != len(unique) {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.conn(ctx).Omit(clause.Associations).Create(user).Error; err != nil {
		return classify("create user", err)
	}
	return nil
}

func (s *GormStore) SaveUser(ctx context.Context, user *models.User) error {
	err := s.conn(ctx).Model(user).
		Select("username", "email", "name", "password", "avatar", "avatar_key", "bio", "user_type", "is_admin", "google_id").
		Omit(clause.Associations).
		Updates(user).Error
	if err != nil {
		return classify("save user", err)
	}
	return nil
}

func (s *GormStore) findUser(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).Where(query, arg).First(&user).Error; err != nil {
		return nil, classify("find user", err)
	}
	return &user, nil
}

func (s *GormStore) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *GormStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, "username = ?", username)
}

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, "email = ?", email)
}

func (s *GormStore) FindUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return s.findUser(ctx, "google_id = ?", googleID)
}

func (s *GormStore) LoadRelations(ctx context.Context, user *models.User) error {
	err := s.conn(ctx).
		Preload("Followers").
		Preload("Followings").
		Preload("BlockedUsers").
		Preload("BlockedByUsers").
		First(user, user.ID).Error
	if err != nil {
		return classify("load relations", err)
	}
	return nil
}

func (s *GormStore) ownedPostIDs(ctx context.Context, id uint) *gorm.DB {
	return s.conn(ctx).Model(&models.Post{}).Select("id").Where("owner_id = ?", id)
}

func (s *GormStore) DeleteUserCascade(ctx context.Context, id uint) error {
	steps := []struct {
		name string
		run  func() error
	}{
		{"comments", func() error {
			return s.conn(ctx).Where("owner_id = ? OR post_id IN (?)", id, s.ownedPostIDs(ctx, id)).Delete(&models.Comment{}).Error
		}},
		{"notifications", func() error {
			return s.conn(ctx).Where("sender_id = ? OR receiver_id = ? OR post_id IN (?)", id, id, s.ownedPostIDs(ctx, id)).Delete(&models.Notification{}).Error
		}},
		{"posts", func() error {
			return s.conn(ctx).Where("owner_id = ?", id).Delete(&models.Post{}).Error
		}},
		{"follows", func() error {
			return s.conn(ctx).Where("follower_id = ? OR following_id = ?", id, id).Delete(&models.Follow{}).Error
		}},
		{"blocks", func() error {
			return s.conn(ctx).Where("blocker_id = ? OR blocked_id = ?", id, id).Delete(&models.Block{}).Error
		}},
		{"refresh tokens", func() error {
			return s.conn(ctx).Where("user_id = ?", id).Delete(&models.RefreshToken{}).Error
		}},
		{"user", func() error {
			result := s.conn(ctx).Delete(&models.User{}, id)
			if result.Error == nil && result.RowsAffected == 0 {
				return ErrNotFound
			}
			return result.Error
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return classify("delete "+step.name, err)
		}
	}
	return nil
}

func (s *GormStore) Relationship(ctx context.Context, a, b uint) (RelationState, error) {
	var state RelationState

	var follows []models.Follow
	err := s.conn(ctx).
		Where("(follower_id = ? AND following_id = ?) OR (follower_id = ? AND following_id = ?)", a, b, b, a).
		Find(&follows).Error
	if err != nil {
		return state, classify("load follows", err)
	}
	for _, f := range follows {
		if f.FollowerID == a {
			state.Following = true
		} else {
			state.FollowedBy = true
		}
	}

	var blocks []models.Block
	err = s.conn(ctx).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Find(&blocks).Error
	if err != nil {
		return state, classify("load blocks", err)
	}
	for _, bl := range blocks {
		if bl.BlockerID == a {
			state.Blocking = true
		} else {
			state.BlockedBy = true
		}
	}
	return state, nil
}

func (s *GormStore) AddFollow(ctx context.Context, followerID, followingID uint) error {
	if err := s.conn(ctx).Create(&models.Follow{FollowerID: followerID, FollowingID: followingID}).Error; err != nil {
		return classify("add follow", err)
	}
	return nil
}

func (s *GormStore) RemoveFollow(ctx context.Context, followerID, followingID uint) error {
	err := s.conn(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{}).Error
	if err != nil {
		return classify("remove follow", err)
	}
	return nil
}

func (s *GormStore) AddBlock(ctx context.Context, blockerID, blockedID uint) error {
	if err := s.conn(ctx).Create(&models.Block{BlockerID: blockerID, BlockedID: blockedID}).Error; err != nil {
		return classify("add block", err)
	}
	return nil
}

func (s *GormStore) RemoveBlock(ctx context.Context, blockerID, blockedID uint) error {
	err := s.conn(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&models.Block{}).Error
	if err != nil {
		return classify("remove block", err)
	}
	return nil
}

func (s *GormStore) CountRelations(ctx context.Context, userID uint) (int64, int64, error) {
	var followers, followings int64
	if err := s.conn(ctx).Model(&models.Follow{}).Where("following_id = ?", userID).Count(&followers).Error; err != nil {
		return 0, 0, classify("count followers", err)
	}
	if err := s.conn(ctx).Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&followings).Error; err != nil {
		return 0, 0, classify("count followings", err)
	}
	return followers, followings, nil
}

// notBlockedWith excludes users in a block relationship with viewerID.
func (s *GormStore) notBlockedWith(ctx context.Context, q *gorm.DB, viewerID uint) *gorm.DB {
	blockedByViewer := s.conn(ctx).Model(&models.Block{}).Select("blocked_id").Where("blocker_id = ?", viewerID)
	blockingViewer := s.conn(ctx).Model(&models.Block{}).Select("blocker_id").Where("blocked_id = ?", viewerID)
	return q.Where("users.id NOT IN (?)", blockedByViewer).Where("users.id NOT IN (?)", blockingViewer)
}

func (s *GormStore) SearchUsers(ctx context.Context, query string, viewerID uint, limit int) ([]models.User, error) {
	q := s.conn(ctx).Model(&models.User{})
	if query != "" {
		pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
		q = q.Where("(LOWER(users.username) LIKE ? OR LOWER(users.name) LIKE ?)", pattern, pattern)
	}
	q = s.notBlockedWith(ctx, q, viewerID)

	var users []models.User
	if err := q.Order("users.id").Limit(limit).Find(&users).Error; err != nil {
		return nil, classify("search users", err)
	}
	return users, nil
}

func (s *GormStore) listEdge(ctx context.Context, joinOn, whereCol string, userID, viewerID uint) ([]models.User, error) {
	q := s.conn(ctx).Model(&models.User{}).
		Select("users.*").
		Joins("JOIN follows ON follows."+joinOn+" = users.id").
		Where("follows."+whereCol+" = ?", userID)
	q = s.notBlockedWith(ctx, q, viewerID)

	var users []models.User
	if err := q.Order("follows.created_at DESC").Find(&users).Error; err != nil {
		return nil, classify("list follows", err)
	}
	return users, nil
}

func (s *GormStore) ListFollowers(ctx context.Context, userID, viewerID uint) ([]models.User, error) {
	return s.listEdge(ctx, "follower_id", "following_id", userID, viewerID)
}

func (s *GormStore) ListFollowings(ctx context.Context, userID, viewerID uint) ([]models.User, error) {
	return s.listEdge(ctx, "following_id", "follower_id", userID, viewerID)
}

func (s *GormStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if err := s.conn(ctx).Omit(clause.Associations).Create(n).Error; err != nil {
		return classify("create notification", err)
	}
	return nil
}

func (s *GormStore) DeleteNotifications(ctx context.Context, filter NotificationFilter) (int64, error) {
	if filter.empty() {
		return 0, errEmptyFilter
	}
	q := s.conn(ctx)
	if filter.SenderID != 0 {
		q = q.Where("sender_id = ?", filter.SenderID)
	}
	if filter.ReceiverID != 0 {
		q = q.Where("receiver_id = ?", filter.ReceiverID)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	result := q.Delete(&models.Notification{})
	if result.Error != nil {
		return 0, classify("delete notifications", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormStore) FindNotifications(ctx context.Context, receiverID uint, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.conn(ctx).
		Preload("Sender").
		Preload("Receiver").
		Preload("Post").
		Where("receiver_id = ?", receiverID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, classify("find notifications", err)
	}
	return notifications, nil
}

func (s *GormStore) CreatePost(ctx context.Context, post *models.Post) error {
	if err := s.conn(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		return classify("create post", err)
	}
	return nil
}

func (s *GormStore) FindPostByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := s.conn(ctx).First(&post, id).Error; err != nil {
		return nil, classify("find post", err)
	}
	return &post, nil
}

func (s *GormStore) PostsByOwner(ctx context.Context, ownerID uint) ([]models.Post, error) {
	var posts []models.Post
	err := s.conn(ctx).
		Preload("Owner").
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, classify("posts by owner", err)
	}
	return posts, nil
}

func (s *GormStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	if err := s.conn(ctx).Create(comment).Error; err != nil {
		return classify("create comment", err)
	}
	return nil
}

func (s *GormStore) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if err := s.conn(ctx).Create(token).Error; err != nil {
		return classify("create refresh token", err)
	}
	return nil
}

func (s *GormStore) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	if err := s.conn(ctx).Where("token = ?", token).First(&rt).Error; err != nil {
		return nil, classify("find refresh token", err)
	}
	return &rt, nil
}

func (s *GormStore) DeleteRefreshToken(ctx context.Context, token string) (int64, error) {
	result := s.conn(ctx).Where("token = ?", token).Delete(&models.RefreshToken{})
	if result.Error != nil {
		return 0, classify("delete refresh token", result.Error)
	}
	return result.RowsAffected, nil
}

// classify maps driver errors onto the package sentinels and wraps the rest.
func classify(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s: %w: %s", op, ErrDuplicate, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
