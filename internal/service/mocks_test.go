package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot-api/internal/domain"
	"github.com/taskpilot/taskpilot-api/internal/push"
	"github.com/taskpilot/taskpilot-api/internal/store"
)

// Hand-rolled in-memory fakes for the pipeline dependencies. Each fake
// carries error toggles so tests can fail one layer at a time.

type fakeNotificationStore struct {
	mu         sync.Mutex
	nextID     int64
	rows       map[int64]*domain.Notification
	createErr  error
	markErr    error
	listErr    error
	countErr   error
	createdIDs []int64
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{rows: make(map[int64]*domain.Notification)}
}

func (s *fakeNotificationStore) Create(_ context.Context, n *domain.Notification) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	n.ID = s.nextID
	clone := *n
	s.rows[n.ID] = &clone
	s.createdIDs = append(s.createdIDs, n.ID)
	return nil
}

func (s *fakeNotificationStore) GetByID(_ context.Context, id int64) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok {
		return nil, store.ErrNotificationNotFound
	}
	clone := *n
	return &clone, nil
}

func (s *fakeNotificationStore) ListRecent(_ context.Context, recipientID uuid.UUID, limit int) ([]*domain.Notification, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Notification
	for id := s.nextID; id >= 1 && (limit <= 0 || len(out) < limit); id-- {
		if n, ok := s.rows[id]; ok && n.RecipientID == recipientID {
			clone := *n
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *fakeNotificationStore) CountUnread(_ context.Context, recipientID uuid.UUID) (int64, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, n := range s.rows {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *fakeNotificationStore) MarkRead(_ context.Context, recipientID uuid.UUID, id int64) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok || n.RecipientID != recipientID {
		return store.ErrNotificationNotFound
	}
	n.IsRead = true
	return nil
}

func (s *fakeNotificationStore) MarkAllRead(_ context.Context, recipientID uuid.UUID) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.rows {
		if n.RecipientID == recipientID {
			n.IsRead = true
		}
	}
	return nil
}

func (s *fakeNotificationStore) WithTx(*sql.Tx) store.NotificationStore { return s }

type fakeBroker struct {
	mu         sync.Mutex
	queues     map[uuid.UUID][]*domain.Notification
	publishErr error
	drainErr   error
	published  []*domain.Notification
	chatSent   []*domain.ChatMessage
	chatErr    error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{queues: make(map[uuid.UUID][]*domain.Notification)}
}

func (b *fakeBroker) PublishNotification(_ context.Context, n *domain.Notification) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	clone := *n
	b.queues[n.RecipientID] = append(b.queues[n.RecipientID], &clone)
	b.published = append(b.published, &clone)
	return nil
}

func (b *fakeBroker) DrainNotifications(
	ctx context.Context,
	userID uuid.UUID,
	apply func(ctx context.Context, n *domain.Notification) error,
) ([]*domain.Notification, error) {
	if b.drainErr != nil {
		return nil, b.drainErr
	}
	b.mu.Lock()
	queued := b.queues[userID]
	b.queues[userID] = nil
	b.mu.Unlock()

	var applied []*domain.Notification
	for i, n := range queued {
		if err := apply(ctx, n); err != nil {
			// Message stays queued, like an unacked broker delivery.
			b.mu.Lock()
			b.queues[userID] = append(queued[i:], b.queues[userID]...)
			b.mu.Unlock()
			return applied, err
		}
		applied = append(applied, n)
	}
	return applied, nil
}

func (b *fakeBroker) PublishChatMessage(_ context.Context, m *domain.ChatMessage) error {
	if b.chatErr != nil {
		return b.chatErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	clone := *m
	b.chatSent = append(b.chatSent, &clone)
	return nil
}

func (b *fakeBroker) queueLen(userID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[userID])
}

type fakeCache struct {
	mu        sync.Mutex
	blobs     map[int64]*domain.Notification
	lists     map[uuid.UUID][]int64
	counts    map[uuid.UUID]int64
	cacheErr  error
	listErr   error
	countErr  error
	markErr   error
	cacheDown bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		blobs:  make(map[int64]*domain.Notification),
		lists:  make(map[uuid.UUID][]int64),
		counts: make(map[uuid.UUID]int64),
	}
}

var errCacheDown = errors.New("cache down")

func (c *fakeCache) CacheNotification(_ context.Context, n *domain.Notification) error {
	if c.cacheErr != nil || c.cacheDown {
		return errOr(c.cacheErr)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	clone := *n
	c.blobs[n.ID] = &clone
	c.lists[n.RecipientID] = append([]int64{n.ID}, c.lists[n.RecipientID]...)
	if !n.IsRead {
		c.counts[n.RecipientID]++
	}
	return nil
}

func (c *fakeCache) Contains(_ context.Context, userID uuid.UUID, id int64) (bool, error) {
	if c.cacheDown {
		return false, errCacheDown
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cached := range c.lists[userID] {
		if cached == id {
			return true, nil
		}
	}
	return false, nil
}

func (c *fakeCache) UnreadCount(_ context.Context, userID uuid.UUID) (int64, error) {
	if c.countErr != nil || c.cacheDown {
		return 0, errOr(c.countErr)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[userID], nil
}

func (c *fakeCache) Notifications(_ context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error) {
	if c.listErr != nil || c.cacheDown {
		return nil, errOr(c.listErr)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*domain.Notification
	for _, id := range c.lists[userID] {
		if limit > 0 && len(out) >= limit {
			break
		}
		if n, ok := c.blobs[id]; ok {
			clone := *n
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (c *fakeCache) MarkRead(_ context.Context, userID uuid.UUID, id int64) error {
	if c.markErr != nil || c.cacheDown {
		return errOr(c.markErr)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.blobs[id]
	if !ok || n.RecipientID != userID {
		return errors.New("not cached")
	}
	if !n.IsRead {
		n.IsRead = true
		if c.counts[userID] > 0 {
			c.counts[userID]--
		}
	}
	return nil
}

func (c *fakeCache) MarkAllRead(_ context.Context, userID uuid.UUID) error {
	if c.markErr != nil || c.cacheDown {
		return errOr(c.markErr)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.lists[userID] {
		if n, ok := c.blobs[id]; ok {
			n.IsRead = true
		}
	}
	c.counts[userID] = 0
	return nil
}

func (c *fakeCache) DeleteNotification(_ context.Context, userID uuid.UUID, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.blobs, id)
	ids := c.lists[userID]
	for i, cached := range ids {
		if cached == id {
			c.lists[userID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (c *fakeCache) DeleteAll(_ context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.lists[userID] {
		delete(c.blobs, id)
	}
	c.lists[userID] = nil
	c.counts[userID] = 0
	return nil
}

func (c *fakeCache) clear(userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.lists[userID] {
		delete(c.blobs, id)
	}
	c.lists[userID] = nil
	c.counts[userID] = 0
}

func errOr(err error) error {
	if err != nil {
		return err
	}
	return errCacheDown
}

type fakePusher struct {
	mu     sync.Mutex
	events map[uuid.UUID][]push.Event
}

func newFakePusher() *fakePusher {
	return &fakePusher{events: make(map[uuid.UUID][]push.Event)}
}

func (p *fakePusher) SendToUser(userID uuid.UUID, event push.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[userID] = append(p.events[userID], event)
}

func (p *fakePusher) eventsFor(userID uuid.UUID) []push.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]push.Event(nil), p.events[userID]...)
}

type fakeUserStore struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*domain.User
	byEmail   map[string]*domain.User
	admins    []*domain.User
	createErr error
	listErr   error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:   make(map[uuid.UUID]*domain.User),
		byEmail: make(map[string]*domain.User),
	}
}

func (s *fakeUserStore) add(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	s.byEmail[u.Email] = u
	if u.IsAdmin() {
		s.admins = append(s.admins, u)
	}
}

func (s *fakeUserStore) Create(_ context.Context, u *domain.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	_, exists := s.byEmail[u.Email]
	s.mu.Unlock()
	if exists {
		return store.ErrEmailExists
	}
	s.add(u)
	return nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return u, nil
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[email]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return u, nil
}

func (s *fakeUserStore) ListAdmins(context.Context) ([]*domain.User, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.User(nil), s.admins...), nil
}

func (s *fakeUserStore) WithTx(*sql.Tx) store.UserStore { return s }

type fakeTaskStore struct {
	mu        sync.Mutex
	nextID    int64
	tasks     map[int64]*domain.Task
	updateErr error
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[int64]*domain.Task)}
}

func (s *fakeTaskStore) Create(_ context.Context, t *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	clone := *t
	s.tasks[t.ID] = &clone
	return nil
}

func (s *fakeTaskStore) GetByID(_ context.Context, id int64) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	clone := *t
	return &clone, nil
}

func (s *fakeTaskStore) ListForUser(_ context.Context, userID uuid.UUID, limit int) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Task
	for id := s.nextID; id >= 1 && (limit <= 0 || len(out) < limit); id-- {
		if t, ok := s.tasks[id]; ok && (t.CreatorID == userID || t.AssigneeID == userID) {
			clone := *t
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *fakeTaskStore) Update(_ context.Context, t *domain.Task) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return store.ErrTaskNotFound
	}
	clone := *t
	s.tasks[t.ID] = &clone
	return nil
}

func (s *fakeTaskStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *fakeTaskStore) WithTx(*sql.Tx) store.TaskStore { return s }

// fakeTransactor runs the function directly; the fake stores ignore the tx.
type fakeTransactor struct {
	beginErr error
}

func (t *fakeTransactor) RunInTransaction(ctx context.Context, fn store.TxFn) error {
	if t.beginErr != nil {
		return t.beginErr
	}
	return fn(ctx, nil)
}

type fakeChatStore struct {
	mu       sync.Mutex
	nextID   int64
	messages map[int64]*domain.ChatMessage
}

func newFakeChatStore() *fakeChatStore {
	return &fakeChatStore{messages: make(map[int64]*domain.ChatMessage)}
}

func (s *fakeChatStore) Create(_ context.Context, m *domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	clone := *m
	s.messages[m.ID] = &clone
	return nil
}

func (s *fakeChatStore) Conversation(_ context.Context, a, b uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.ChatMessage
	for id := s.nextID; id >= 1 && (limit <= 0 || len(out) < limit); id-- {
		m, ok := s.messages[id]
		if !ok {
			continue
		}
		if (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a) {
			clone := *m
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *fakeChatStore) MarkConversationRead(_ context.Context, readerID, otherID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.RecipientID == readerID && m.SenderID == otherID {
			m.IsRead = true
		}
	}
	return nil
}

func (s *fakeChatStore) CountUnread(_ context.Context, recipientID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, m := range s.messages {
		if m.RecipientID == recipientID && !m.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *fakeChatStore) WithTx(*sql.Tx) store.ChatMessageStore { return s }
