package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/snap-point/social-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUsers(t *testing.T, s Store, names ...string) []*models.User {
	t.Helper()
	users := make([]*models.User, len(names))
	for i, name := range names {
		u := &models.User{Username: name, Email: name + "@example.com", Name: name}
		require.NoError(t, s.CreateUser(context.Background(), u))
		users[i] = u
	}
	return users
}

func TestMemoryStore_CreateUserRejectsDuplicates(t *testing.T) {
	s := NewMemoryStore()
	seedUsers(t, s, "alice")

	err := s.CreateUser(context.Background(), &models.User{Username: "alice", Email: "other@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryStore_FollowEdgeIsSymmetric(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	users := seedUsers(t, s, "alice", "bob")
	alice, bob := users[0], users[1]

	require.NoError(t, s.AddFollow(ctx, alice.ID, bob.ID))
	assert.ErrorIs(t, s.AddFollow(ctx, alice.ID, bob.ID), ErrDuplicate)

	require.NoError(t, s.LoadRelations(ctx, alice))
	require.NoError(t, s.LoadRelations(ctx, bob))
	assert.Equal(t, []uint{bob.ID}, models.IDs(alice.Followings))
	assert.Equal(t, []uint{alice.ID}, models.IDs(bob.Followers))
	assert.Empty(t, alice.Followers)

	state, err := s.Relationship(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, RelationState{FollowedBy: true}, state)
}

func TestMemoryStore_LockUsersRequiresEveryUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	users := seedUsers(t, s, "alice", "bob")

	err := s.Transaction(ctx, func(tx Store) error {
		return tx.LockUsers(ctx, users[0].ID, users[1].ID)
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteUserCascade(ctx, users[1].ID))
	err = s.Transaction(ctx, func(tx Store) error {
		return tx.LockUsers(ctx, users[0].ID, users[1].ID)
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_TransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	users := seedUsers(t, s, "alice", "bob")

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx Store) error {
		if err := tx.AddFollow(ctx, users[0].ID, users[1].ID); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	state, err := s.Relationship(ctx, users[0].ID, users[1].ID)
	require.NoError(t, err)
	assert.False(t, state.Following)
}

func TestMemoryStore_SearchUsersExcludesBlocked(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	users := seedUsers(t, s, "alice", "bob", "bobby", "carol")
	alice, bob, bobby := users[0], users[1], users[2]

	require.NoError(t, s.AddBlock(ctx, bobby.ID, alice.ID))

	found, err := s.SearchUsers(ctx, "BOB", alice.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, models.IDs(found))

	all, err := s.SearchUsers(ctx, "", alice.ID, 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemoryStore_NotificationsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	users := seedUsers(t, s, "alice", "bob", "carol")
	alice, bob, carol := users[0], users[1], users[2]

	for _, sender := range []*models.User{bob, carol} {
		require.NoError(t, s.CreateNotification(ctx, &models.Notification{
			SenderID:   sender.ID,
			ReceiverID: alice.ID,
			Kind:       models.NotificationKindFollow,
			Text:       models.FollowText(sender.Username),
		}))
	}

	err := s.CreateNotification(ctx, &models.Notification{SenderID: bob.ID, ReceiverID: alice.ID, Kind: models.NotificationKindFollow})
	assert.ErrorIs(t, err, ErrDuplicate)

	feed, err := s.FindNotifications(ctx, alice.ID, 20)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "carol started following you", feed[0].Text)
	require.NotNil(t, feed[0].Sender)
	assert.Equal(t, "carol", feed[0].Sender.Username)
	assert.Equal(t, "alice", feed[0].Receiver.Username)

	n, err := s.DeleteNotifications(ctx, NotificationFilter{SenderID: bob.ID, ReceiverID: alice.ID, Kind: models.NotificationKindFollow})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.DeleteNotifications(ctx, NotificationFilter{})
	assert.Error(t, err)
}

func TestMemoryStore_DeleteUserCascade(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	users := seedUsers(t, s, "alice", "bob")
	alice, bob := users[0], users[1]

	post := &models.Post{OwnerID: alice.ID, Content: "hello"}
	require.NoError(t, s.CreatePost(ctx, post))
	require.NoError(t, s.CreateComment(ctx, &models.Comment{OwnerID: bob.ID, PostID: post.ID, Content: "hi"}))
	require.NoError(t, s.AddFollow(ctx, bob.ID, alice.ID))
	require.NoError(t, s.AddBlock(ctx, alice.ID, bob.ID))
	require.NoError(t, s.CreateNotification(ctx, &models.Notification{SenderID: bob.ID, ReceiverID: alice.ID, Kind: models.NotificationKindFollow, Text: "x"}))

	require.NoError(t, s.DeleteUserCascade(ctx, alice.ID))

	_, err := s.FindUserByID(ctx, alice.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindPostByID(ctx, post.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.LoadRelations(ctx, bob))
	assert.Empty(t, bob.Followings)
	assert.Empty(t, bob.BlockedByUsers)

	assert.ErrorIs(t, s.DeleteUserCascade(ctx, alice.ID), ErrNotFound)
}
