package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/snap-point/social-api/models"
	"github.com/snap-point/social-api/repository"
	"github.com/snap-point/social-api/storage"
	"github.com/snap-point/social-api/utils"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type push struct {
	userID  uint
	message string
}

type recordingNotifier struct {
	mu     sync.Mutex
	pushes []push
}

func (n *recordingNotifier) Push(_ context.Context, userID uint, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, push{userID, message})
}

func (n *recordingNotifier) all() []push {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]push(nil), n.pushes...)
}

type fakeAssets struct {
	mu         sync.Mutex
	deleted    []string
	failDelete error
}

func (a *fakeAssets) DeleteAsset(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failDelete != nil {
		return a.failDelete
	}
	a.deleted = append(a.deleted, key)
	return nil
}

func (a *fakeAssets) PresignAvatarUpload(_ context.Context, userID uint, fileName, contentType string, size int64) (*storage.PresignedUpload, error) {
	if err := storage.ValidateAvatar(contentType, size); err != nil {
		return nil, err
	}
	key := storage.AvatarKey(userID, fileName)
	return &storage.PresignedUpload{UploadURL: "https://upload.example.com/" + key, FileURL: "https://cdn.example.com/" + key, Key: key, ExpiresIn: 1800}, nil
}

type fakeStats struct {
	mu          sync.Mutex
	counts      map[uint][2]int64
	generations map[uint]int64
	invalidated []uint
}

func newFakeStats() *fakeStats {
	return &fakeStats{counts: make(map[uint][2]int64), generations: make(map[uint]int64)}
}

func (f *fakeStats) Get(_ context.Context, id uint) (int64, int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.counts[id]
	return c[0], c[1], ok
}

func (f *fakeStats) Generation(_ context.Context, id uint) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generations[id], true
}

func (f *fakeStats) Set(_ context.Context, id uint, generation, followers, followings int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generations[id] != generation {
		return
	}
	f.counts[id] = [2]int64{followers, followings}
}

func (f *fakeStats) Invalidate(_ context.Context, ids ...uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.counts, id)
		f.generations[id]++
		f.invalidated = append(f.invalidated, id)
	}
}

// seed caches counts for id under its current generation.
func (f *fakeStats) seed(id uint, followers, followings int64) {
	generation, _ := f.Generation(context.Background(), id)
	f.Set(context.Background(), id, generation, followers, followings)
}

// countHookStore runs afterCount once, after CountRelations has read the
// counts and before they are returned.
type countHookStore struct {
	repository.Store
	afterCount func()
}

func (s *countHookStore) CountRelations(ctx context.Context, userID uint) (int64, int64, error) {
	followers, followings, err := s.Store.CountRelations(ctx, userID)
	if hook := s.afterCount; hook != nil {
		s.afterCount = nil
		hook()
	}
	return followers, followings, err
}

// failingStore fails the named write, inside transactions too.
type failingStore struct {
	repository.Store
	failOn string
}

var errConnectionReset = errors.New("connection reset by peer")

func (f *failingStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	return f.Store.Transaction(ctx, func(tx repository.Store) error {
		return fn(&failingStore{Store: tx, failOn: f.failOn})
	})
}

func (f *failingStore) AddFollow(ctx context.Context, a, b uint) error {
	if f.failOn == "AddFollow" {
		return errConnectionReset
	}
	return f.Store.AddFollow(ctx, a, b)
}

func (f *failingStore) AddBlock(ctx context.Context, a, b uint) error {
	if f.failOn == "AddBlock" {
		return errConnectionReset
	}
	return f.Store.AddBlock(ctx, a, b)
}

func (f *failingStore) DeleteUserCascade(ctx context.Context, id uint) error {
	if f.failOn == "DeleteUserCascade" {
		return errConnectionReset
	}
	return f.Store.DeleteUserCascade(ctx, id)
}

type fixture struct {
	svc      *Services
	store    *repository.MemoryStore
	notifier *recordingNotifier
	assets   *fakeAssets
	stats    *fakeStats
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, nil)
}

// newFixtureWithStore wraps the memory store with wrap when given.
func newFixtureWithStore(t *testing.T, wrap func(repository.Store) repository.Store) *fixture {
	t.Helper()
	f := &fixture{
		store:    repository.NewMemoryStore(),
		notifier: &recordingNotifier{},
		assets:   &fakeAssets{},
		stats:    newFakeStats(),
	}
	var store repository.Store = f.store
	if wrap != nil {
		store = wrap(store)
	}
	f.svc = New(Dependencies{
		Store:    store,
		Notifier: f.notifier,
		Assets:   f.assets,
		Stats:    f.stats,
		Tokens:   utils.NewTokenIssuer("test-secret", time.Hour, 24*time.Hour),
	})
	return f
}

func (f *fixture) user(t *testing.T, username string) *models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Name:     username,
		Password: string(hashed),
	}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

// relations reloads u's four relationship sets as id slices.
func (f *fixture) relations(t *testing.T, u *models.User) (followers, followings, blocked, blockedBy []uint) {
	t.Helper()
	fresh := &models.User{ID: u.ID}
	require.NoError(t, f.store.LoadRelations(context.Background(), fresh))
	return models.IDs(fresh.Followers), models.IDs(fresh.Followings), models.IDs(fresh.BlockedUsers), models.IDs(fresh.BlockedByUsers)
}

func (f *fixture) notifications(t *testing.T, receiver *models.User) []models.Notification {
	t.Helper()
	n, err := f.store.FindNotifications(context.Background(), receiver.ID, 100)
	require.NoError(t, err)
	return n
}
