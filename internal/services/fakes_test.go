package services

import (
	"context"
	"time"

	"kakachat/internal/models"
	"kakachat/internal/queue"
	"kakachat/internal/repositories"
)

// fakeUserRepo хранит пользователей в map и считает обращения GetByID.
type fakeUserRepo struct {
	users      map[int64]*models.User
	getByIDN   int
	onlineSets map[int64]bool
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[int64]*models.User), onlineSets: make(map[int64]bool)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(u *models.User) error {
	u.ID = int64(len(r.users) + 1)
	u.CreatedAt = time.Now()
	r.users[u.ID] = u
	return nil
}

func (r *fakeUserRepo) GetByID(id int64) (*models.User, error) {
	r.getByIDN++
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) List(excludeID int64) ([]*models.User, error) {
	var out []*models.User
	for _, u := range r.users {
		if u.ID != excludeID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) SetOnline(id int64, online bool) error {
	if _, ok := r.users[id]; !ok {
		return repositories.ErrUserNotFound
	}
	r.onlineSets[id] = online
	return nil
}

func (r *fakeUserRepo) UpdatePassword(id int64, passwordHash string) error {
	u, ok := r.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *fakeUserRepo) UpdateRefresh(userID int64, token string, expiresAt time.Time) error {
	u, ok := r.users[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.RefreshToken = &token
	u.RefreshExpiresAt = &expiresAt
	return nil
}

func (r *fakeUserRepo) RotateRefresh(oldToken, newToken string, newExpiresAt time.Time) (*models.User, error) {
	for _, u := range r.users {
		if u.RefreshToken != nil && *u.RefreshToken == oldToken && !u.RefreshRevoked {
			u.RefreshToken = &newToken
			u.RefreshExpiresAt = &newExpiresAt
			return u, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) ClearRefresh(userID int64) error {
	if u, ok := r.users[userID]; ok {
		u.RefreshToken = nil
		u.RefreshExpiresAt = nil
	}
	return nil
}

func (r *fakeUserRepo) GetByRefreshToken(token string) (*models.User, error) {
	for _, u := range r.users {
		if u.RefreshToken != nil && *u.RefreshToken == token {
			return u, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

type fakeConversationRepo struct {
	convs  map[int64]*models.Conversation
	nextID int64
}

func newFakeConversationRepo(convs ...*models.Conversation) *fakeConversationRepo {
	r := &fakeConversationRepo{convs: make(map[int64]*models.Conversation), nextID: 1}
	for _, c := range convs {
		r.convs[c.ID] = c
		if c.ID >= r.nextID {
			r.nextID = c.ID + 1
		}
	}
	return r
}

func (r *fakeConversationRepo) Create(conv *models.Conversation) error {
	conv.ID = r.nextID
	r.nextID++
	conv.CreatedAt = time.Now()
	r.convs[conv.ID] = conv
	return nil
}

func (r *fakeConversationRepo) GetByID(id int64) (*models.Conversation, error) {
	c, ok := r.convs[id]
	if !ok {
		return nil, repositories.ErrConversationNotFound
	}
	return c, nil
}

func (r *fakeConversationRepo) ListForUser(userID int64) ([]*models.Conversation, error) {
	var out []*models.Conversation
	for _, c := range r.convs {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeConversationRepo) IsParticipant(conversationID, userID int64) (bool, error) {
	c, ok := r.convs[conversationID]
	if !ok {
		return false, repositories.ErrConversationNotFound
	}
	return c.HasParticipant(userID), nil
}

func (r *fakeConversationRepo) AddParticipant(conversationID, userID int64) error {
	c, ok := r.convs[conversationID]
	if !ok {
		return repositories.ErrConversationNotFound
	}
	if !c.HasParticipant(userID) {
		c.Participants = append(c.Participants, userID)
	}
	return nil
}

func (r *fakeConversationRepo) RemoveParticipant(conversationID, userID int64) error {
	c, ok := r.convs[conversationID]
	if !ok {
		return repositories.ErrConversationNotFound
	}
	kept := c.Participants[:0]
	for _, id := range c.Participants {
		if id != userID {
			kept = append(kept, id)
		}
	}
	c.Participants = kept
	return nil
}

type fakeMessageRepo struct {
	messages []*models.Message
	nextID   int64
}

func (r *fakeMessageRepo) Create(msg *models.Message) error {
	r.nextID++
	msg.ID = r.nextID
	msg.CreatedAt = time.Now()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *fakeMessageRepo) ListByConversation(conversationID int64) ([]*models.Message, error) {
	var out []*models.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

// fakeQueue записывает поставленные задачи вместо их выполнения.
type fakeQueue struct {
	tasks  []queue.Task
	delays []time.Duration
	err    error
}

func (q *fakeQueue) Enqueue(_ context.Context, t queue.Task, delay time.Duration) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, t)
	q.delays = append(q.delays, delay)
	return nil
}

func (q *fakeQueue) Close() error { return nil }

type fakeBroadcaster struct {
	sent []*models.EnrichedMessage
}

func (b *fakeBroadcaster) Broadcast(_ int64, msg *models.EnrichedMessage) {
	b.sent = append(b.sent, msg)
}

type fakeBlobs struct{}

func (fakeBlobs) URL(id string) string { return "http://localhost:8080/files/" + id }
