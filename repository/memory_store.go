package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/snap-point/social-api/models"
)

type edge struct {
	from, to uint
}

type memData struct {
	nextUserID         uint
	nextPostID         uint
	nextCommentID      uint
	nextNotificationID uint
	nextTokenID        uint

	users         map[uint]models.User
	follows       map[edge]time.Time
	blocks        map[edge]time.Time
	notifications map[uint]models.Notification
	posts         map[uint]models.Post
	comments      map[uint]models.Comment
	tokens        map[string]models.RefreshToken
}

func newMemData() *memData {
	return &memData{
		users:         make(map[uint]models.User),
		follows:       make(map[edge]time.Time),
		blocks:        make(map[edge]time.Time),
		notifications: make(map[uint]models.Notification),
		posts:         make(map[uint]models.Post),
		comments:      make(map[uint]models.Comment),
		tokens:        make(map[string]models.RefreshToken),
	}
}

func (d *memData) clone() *memData {
	c := *d
	c.users = make(map[uint]models.User, len(d.users))
	for k, v := range d.users {
		c.users[k] = v
	}
	c.follows = make(map[edge]time.Time, len(d.follows))
	for k, v := range d.follows {
		c.follows[k] = v
	}
	c.blocks = make(map[edge]time.Time, len(d.blocks))
	for k, v := range d.blocks {
		c.blocks[k] = v
	}
	c.notifications = make(map[uint]models.Notification, len(d.notifications))
	for k, v := range d.notifications {
		c.notifications[k] = v
	}
	c.posts = make(map[uint]models.Post, len(d.posts))
	for k, v := range d.posts {
		c.posts[k] = v
	}
	c.comments = make(map[uint]models.Comment, len(d.comments))
	for k, v := range d.comments {
		c.comments[k] = v
	}
	c.tokens = make(map[string]models.RefreshToken, len(d.tokens))
	for k, v := range d.tokens {
		c.tokens[k] = v
	}
	return &c
}

// MemoryStore keeps everything in process memory. A single mutex
// serializes all access; Transaction holds it for the whole callback and
// restores a snapshot when the callback fails.
type MemoryStore struct {
	mu   *sync.Mutex
	data *memData
	inTx bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mu: &sync.Mutex{}, data: newMemData()}
}

func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&MemoryStore{mu: s.mu, data: s.data, inTx: true}); err != nil {
		*s.data = *snapshot
		return err
	}
	return nil
}

// LockUsers only checks that every id exists. The store mutex already
// serializes transactions.
func (s *MemoryStore) LockUsers(ctx context.Context, ids ...uint) error {
	defer s.lock()()
	for _, id := range ids {
		if _, ok := s.data.users[id]; !ok {
			return ErrNotFound
		}
	}
	return nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	defer s.lock()()
	for _, u := range s.data.users {
		if u.Username == user.Username || u.Email == user.Email {
			return ErrDuplicate
		}
		if user.GoogleID != nil && u.GoogleID != nil && *u.GoogleID == *user.GoogleID {
			return ErrDuplicate
		}
	}
	s.data.nextUserID++
	now := time.Now()
	user.ID = s.data.nextUserID
	user.CreatedAt, user.UpdatedAt = now, now
	if user.UserType == "" {
		user.UserType = "personal"
	}
	s.data.users[user.ID] = stripRelations(*user)
	return nil
}

func (s *MemoryStore) SaveUser(ctx context.Context, user *models.User) error {
	defer s.lock()()
	current, ok := s.data.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	for id, u := range s.data.users {
		if id != user.ID && (u.Username == user.Username || u.Email == user.Email) {
			return ErrDuplicate
		}
	}
	saved := stripRelations(*user)
	saved.CreatedAt = current.CreatedAt
	saved.UpdatedAt = time.Now()
	s.data.users[user.ID] = saved
	user.UpdatedAt = saved.UpdatedAt
	return nil
}

func (s *MemoryStore) findUser(match func(models.User) bool) (*models.User, error) {
	for _, u := range s.data.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	defer s.lock()()
	u, ok := s.data.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	defer s.lock()()
	return s.findUser(func(u models.User) bool { return u.Username == username })
}

func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	defer s.lock()()
	return s.findUser(func(u models.User) bool { return u.Email == email })
}

func (s *MemoryStore) FindUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	defer s.lock()()
	return s.findUser(func(u models.User) bool { return u.GoogleID != nil && *u.GoogleID == googleID })
}

func (s *MemoryStore) LoadRelations(ctx context.Context, user *models.User) error {
	defer s.lock()()
	if _, ok := s.data.users[user.ID]; !ok {
		return ErrNotFound
	}
	user.Followers, user.Followings = []models.User{}, []models.User{}
	user.BlockedUsers, user.BlockedByUsers = []models.User{}, []models.User{}
	for e := range s.data.follows {
		if e.to == user.ID {
			user.Followers = append(user.Followers, s.data.users[e.from])
		}
		if e.from == user.ID {
			user.Followings = append(user.Followings, s.data.users[e.to])
		}
	}
	for e := range s.data.blocks {
		if e.from == user.ID {
			user.BlockedUsers = append(user.BlockedUsers, s.data.users[e.to])
		}
		if e.to == user.ID {
			user.BlockedByUsers = append(user.BlockedByUsers, s.data.users[e.from])
		}
	}
	for _, set := range [][]models.User{user.Followers, user.Followings, user.BlockedUsers, user.BlockedByUsers} {
		sortUsers(set)
	}
	return nil
}

func (s *MemoryStore) DeleteUserCascade(ctx context.Context, id uint) error {
	defer s.lock()()
	if _, ok := s.data.users[id]; !ok {
		return ErrNotFound
	}
	owned := make(map[uint]bool)
	for pid, p := range s.data.posts {
		if p.OwnerID == id {
			owned[pid] = true
		}
	}
	for cid, c := range s.data.comments {
		if c.OwnerID == id || owned[c.PostID] {
			delete(s.data.comments, cid)
		}
	}
	for nid, n := range s.data.notifications {
		if n.SenderID == id || n.ReceiverID == id || (n.PostID != nil && owned[*n.PostID]) {
			delete(s.data.notifications, nid)
		}
	}
	for pid := range owned {
		delete(s.data.posts, pid)
	}
	for e := range s.data.follows {
		if e.from == id || e.to == id {
			delete(s.data.follows, e)
		}
	}
	for e := range s.data.blocks {
		if e.from == id || e.to == id {
			delete(s.data.blocks, e)
		}
	}
	for token, rt := range s.data.tokens {
		if rt.UserID == id {
			delete(s.data.tokens, token)
		}
	}
	delete(s.data.users, id)
	return nil
}

func (s *MemoryStore) Relationship(ctx context.Context, a, b uint) (RelationState, error) {
	defer s.lock()()
	_, following := s.data.follows[edge{a, b}]
	_, followedBy := s.data.follows[edge{b, a}]
	_, blocking := s.data.blocks[edge{a, b}]
	_, blockedBy := s.data.blocks[edge{b, a}]
	return RelationState{
		Following:  following,
		FollowedBy: followedBy,
		Blocking:   blocking,
		BlockedBy:  blockedBy,
	}, nil
}

func (s *MemoryStore) addEdge(set map[edge]time.Time, from, to uint) error {
	if _, ok := s.data.users[from]; !ok {
		return ErrNotFound
	}
	if _, ok := s.data.users[to]; !ok {
		return ErrNotFound
	}
	e := edge{from, to}
	if _, ok := set[e]; ok {
		return ErrDuplicate
	}
	set[e] = time.Now()
	return nil
}

func (s *MemoryStore) AddFollow(ctx context.Context, followerID, followingID uint) error {
	defer s.lock()()
	return s.addEdge(s.data.follows, followerID, followingID)
}

func (s *MemoryStore) RemoveFollow(ctx context.Context, followerID, followingID uint) error {
	defer s.lock()()
	delete(s.data.follows, edge{followerID, followingID})
	return nil
}

func (s *MemoryStore) AddBlock(ctx context.Context, blockerID, blockedID uint) error {
	defer s.lock()()
	return s.addEdge(s.data.blocks, blockerID, blockedID)
}

func (s *MemoryStore) RemoveBlock(ctx context.Context, blockerID, blockedID uint) error {
	defer s.lock()()
	delete(s.data.blocks, edge{blockerID, blockedID})
	return nil
}

func (s *MemoryStore) CountRelations(ctx context.Context, userID uint) (int64, int64, error) {
	defer s.lock()()
	var followers, followings int64
	for e := range s.data.follows {
		if e.to == userID {
			followers++
		}
		if e.from == userID {
			followings++
		}
	}
	return followers, followings, nil
}

func (s *MemoryStore) blockedWith(a, b uint) bool {
	_, ab := s.data.blocks[edge{a, b}]
	_, ba := s.data.blocks[edge{b, a}]
	return ab || ba
}

func (s *MemoryStore) SearchUsers(ctx context.Context, query string, viewerID uint, limit int) ([]models.User, error) {
	defer s.lock()()
	needle := strings.ToLower(query)
	users := []models.User{}
	for _, u := range s.data.users {
		if s.blockedWith(viewerID, u.ID) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(u.Username), needle) &&
			!strings.Contains(strings.ToLower(u.Name), needle) {
			continue
		}
		users = append(users, u)
	}
	sortUsers(users)
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (s *MemoryStore) listEdge(userID, viewerID uint, incoming bool) []models.User {
	type followed struct {
		user models.User
		at   time.Time
	}
	var found []followed
	for e, at := range s.data.follows {
		var other uint
		switch {
		case incoming && e.to == userID:
			other = e.from
		case !incoming && e.from == userID:
			other = e.to
		default:
			continue
		}
		if s.blockedWith(viewerID, other) {
			continue
		}
		found = append(found, followed{s.data.users[other], at})
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].at.Equal(found[j].at) {
			return found[i].user.ID > found[j].user.ID
		}
		return found[i].at.After(found[j].at)
	})
	users := make([]models.User, len(found))
	for i, f := range found {
		users[i] = f.user
	}
	return users
}

func (s *MemoryStore) ListFollowers(ctx context.Context, userID, viewerID uint) ([]models.User, error) {
	defer s.lock()()
	return s.listEdge(userID, viewerID, true), nil
}

func (s *MemoryStore) ListFollowings(ctx context.Context, userID, viewerID uint) ([]models.User, error) {
	defer s.lock()()
	return s.listEdge(userID, viewerID, false), nil
}

func (s *MemoryStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	defer s.lock()()
	if n.Kind == models.NotificationKindFollow {
		for _, existing := range s.data.notifications {
			if existing.Kind == n.Kind && existing.SenderID == n.SenderID && existing.ReceiverID == n.ReceiverID {
				return ErrDuplicate
			}
		}
	}
	s.data.nextNotificationID++
	n.ID = s.data.nextNotificationID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	stored := *n
	stored.Sender, stored.Receiver, stored.Post = nil, nil, nil
	s.data.notifications[n.ID] = stored
	return nil
}

func (s *MemoryStore) DeleteNotifications(ctx context.Context, filter NotificationFilter) (int64, error) {
	if filter.empty() {
		return 0, errEmptyFilter
	}
	defer s.lock()()
	var deleted int64
	for id, n := range s.data.notifications {
		if filter.SenderID != 0 && n.SenderID != filter.SenderID {
			continue
		}
		if filter.ReceiverID != 0 && n.ReceiverID != filter.ReceiverID {
			continue
		}
		if filter.Kind != "" && n.Kind != filter.Kind {
			continue
		}
		delete(s.data.notifications, id)
		deleted++
	}
	return deleted, nil
}

func (s *MemoryStore) FindNotifications(ctx context.Context, receiverID uint, limit int) ([]models.Notification, error) {
	defer s.lock()()
	result := []models.Notification{}
	for _, n := range s.data.notifications {
		if n.ReceiverID != receiverID {
			continue
		}
		if sender, ok := s.data.users[n.SenderID]; ok {
			n.Sender = &sender
		}
		if receiver, ok := s.data.users[n.ReceiverID]; ok {
			n.Receiver = &receiver
		}
		if n.PostID != nil {
			if post, ok := s.data.posts[*n.PostID]; ok {
				n.Post = &post
			}
		}
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) CreatePost(ctx context.Context, post *models.Post) error {
	defer s.lock()()
	if _, ok := s.data.users[post.OwnerID]; !ok {
		return ErrNotFound
	}
	s.data.nextPostID++
	now := time.Now()
	post.ID = s.data.nextPostID
	post.CreatedAt, post.UpdatedAt = now, now
	stored := *post
	stored.Owner, stored.Comments = nil, nil
	s.data.posts[post.ID] = stored
	return nil
}

func (s *MemoryStore) FindPostByID(ctx context.Context, id uint) (*models.Post, error) {
	defer s.lock()()
	p, ok := s.data.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) PostsByOwner(ctx context.Context, ownerID uint) ([]models.Post, error) {
	defer s.lock()()
	posts := []models.Post{}
	owner, ok := s.data.users[ownerID]
	for _, p := range s.data.posts {
		if p.OwnerID != ownerID {
			continue
		}
		if ok {
			o := owner
			p.Owner = &o
		}
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID > posts[j].ID })
	return posts, nil
}

func (s *MemoryStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	defer s.lock()()
	if _, ok := s.data.posts[comment.PostID]; !ok {
		return ErrNotFound
	}
	s.data.nextCommentID++
	comment.ID = s.data.nextCommentID
	comment.CreatedAt = time.Now()
	s.data.comments[comment.ID] = *comment
	return nil
}

func (s *MemoryStore) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	defer s.lock()()
	if _, ok := s.data.tokens[token.Token]; ok {
		return ErrDuplicate
	}
	s.data.nextTokenID++
	token.ID = s.data.nextTokenID
	token.CreatedAt = time.Now()
	s.data.tokens[token.Token] = *token
	return nil
}

func (s *MemoryStore) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	defer s.lock()()
	rt, ok := s.data.tokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	return &rt, nil
}

func (s *MemoryStore) DeleteRefreshToken(ctx context.Context, token string) (int64, error) {
	defer s.lock()()
	if _, ok := s.data.tokens[token]; !ok {
		return 0, nil
	}
	delete(s.data.tokens, token)
	return 1, nil
}

func stripRelations(u models.User) models.User {
	u.Followers, u.Followings, u.BlockedUsers, u.BlockedByUsers = nil, nil, nil, nil
	return u
}

func sortUsers(users []models.User) {
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
}
