// Package memory implements the persistent repository interfaces in process.
// A single mutex serialises every operation, which gives UpsertOpen the same
// atomicity the postgres partial unique index provides.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"herald/services/notification/internal/entity"
	"herald/services/notification/internal/repo/persistent"

	"github.com/google/uuid"
)

type openKey struct {
	event     entity.EventType
	contextID string
}

type linkKey struct {
	userID         string
	notificationID string
}

type Store struct {
	mu            sync.Mutex
	now           func() time.Time
	users         map[string]entity.User
	communities   map[string]entity.Community
	notifications map[string]*entity.Notification
	order         []string
	open          map[openKey]string
	links         map[linkKey]*entity.UsersNotification
}

func NewStore() *Store {
	return &Store{
		now:           func() time.Time { return time.Now().UTC() },
		users:         make(map[string]entity.User),
		communities:   make(map[string]entity.Community),
		notifications: make(map[string]*entity.Notification),
		open:          make(map[openKey]string),
		links:         make(map[linkKey]*entity.UsersNotification),
	}
}

func (s *Store) PutUser(u entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) PutCommunity(c entity.Community) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.communities[c.ID] = c
}

// AllNotifications returns a copy of every stored record, oldest first.
func (s *Store) AllNotifications() []entity.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.Notification, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneNotification(s.notifications[id]))
	}
	return out
}

// AllLinks returns a copy of every stored link.
func (s *Store) AllLinks() []entity.UsersNotification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.UsersNotification, 0, len(s.links))
	for _, l := range s.links {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (s *Store) Users() persistent.UserRepository { return userRepository{s} }

func (s *Store) Communities() persistent.CommunityRepository { return communityRepository{s} }

func (s *Store) Notifications() persistent.NotificationRepository { return notificationRepository{s} }

func (s *Store) UsersNotifications() persistent.UsersNotificationRepository {
	return usersNotificationRepository{s}
}

type userRepository struct{ s *Store }

func (r userRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return &u, nil
}

func (r userRepository) GetByIDs(ctx context.Context, ids []string) ([]entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var users []entity.User
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

type communityRepository struct{ s *Store }

func (r communityRepository) GetByID(ctx context.Context, id string) (*entity.Community, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.communities[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return &c, nil
}

type notificationRepository struct{ s *Store }

func (r notificationRepository) UpsertOpen(ctx context.Context, event entity.Event) (*entity.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	key := openKey{event: event.Type, contextID: event.Context.ID}
	if id, ok := r.s.open[key]; ok {
		n := r.s.notifications[id]
		n.Actors = append(n.Actors, event.Actors...)
		n.Entities = append(n.Entities, event.Entities...)
		n.Context = event.Context
		n.ModifiedAt = now
		out := cloneNotification(n)
		return &out, nil
	}

	n := &entity.Notification{
		ID:         uuid.New().String(),
		Event:      event.Type,
		Context:    event.Context,
		Actors:     append([]entity.Payload{}, event.Actors...),
		Entities:   append([]entity.Payload{}, event.Entities...),
		CreatedAt:  now,
		ModifiedAt: now,
	}
	r.s.notifications[n.ID] = n
	r.s.order = append(r.s.order, n.ID)
	r.s.open[key] = n.ID

	out := cloneNotification(n)
	return &out, nil
}

func (r notificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notifications[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	out := cloneNotification(n)
	return &out, nil
}

func (r notificationRepository) MarkRead(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notifications[id]
	if !ok {
		return entity.ErrNotFound
	}
	n.IsRead = true
	n.ModifiedAt = r.s.now()

	key := openKey{event: n.Event, contextID: n.Context.ID}
	if r.s.open[key] == id {
		delete(r.s.open, key)
	}
	return nil
}

type usersNotificationRepository struct{ s *Store }

func (r usersNotificationRepository) Upsert(ctx context.Context, notificationID, userID string) (*entity.UsersNotification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	key := linkKey{userID: userID, notificationID: notificationID}
	if l, ok := r.s.links[key]; ok {
		l.IsRead = false
		l.IsSeen = false
		l.EntityAddedAt = now
		out := *l
		return &out, nil
	}

	l := &entity.UsersNotification{
		ID:             uuid.New().String(),
		UserID:         userID,
		NotificationID: notificationID,
		CreatedAt:      now,
		EntityAddedAt:  now,
	}
	r.s.links[key] = l
	out := *l
	return &out, nil
}

func (r usersNotificationRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]entity.InboxEntry, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var entries []entity.InboxEntry
	for key, l := range r.s.links {
		if key.userID != userID {
			continue
		}
		n, ok := r.s.notifications[l.NotificationID]
		if !ok {
			continue
		}
		entries = append(entries, entity.InboxEntry{
			Notification:  cloneNotification(n),
			IsRead:        l.IsRead,
			IsSeen:        l.IsSeen,
			EntityAddedAt: l.EntityAddedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].EntityAddedAt.After(entries[j].EntityAddedAt) })

	total := int64(len(entries))
	if offset >= len(entries) {
		return []entity.InboxEntry{}, total, nil
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}
	return entries[offset:end], total, nil
}

func (r usersNotificationRepository) MarkRead(ctx context.Context, userID, notificationID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.links[linkKey{userID: userID, notificationID: notificationID}]
	if !ok {
		return entity.ErrNotFound
	}
	l.IsRead = true
	l.IsSeen = true
	return nil
}

func cloneNotification(n *entity.Notification) entity.Notification {
	out := *n
	out.Actors = append([]entity.Payload(nil), n.Actors...)
	out.Entities = append([]entity.Payload(nil), n.Entities...)
	return out
}
