package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iamasit07/chat-presence/internal/domain"
)

// UserRepo keeps users in process memory. Scans are ordered by user id.
type UserRepo struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[string]domain.User)}
}

// Put creates or replaces a user.
func (r *UserRepo) Put(user domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = clone(user)
}

func (r *UserRepo) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	u = clone(u)
	return &u, nil
}

// Update stores the user's own fields. Rooms are changed only through
// JoinRoom and LeaveRoom.
func (r *UserRepo) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[user.ID]
	if !ok {
		return nil
	}
	updated := *user
	updated.Rooms = existing.Rooms
	r.users[user.ID] = updated
	return nil
}

func (r *UserRepo) JoinRoom(ctx context.Context, userID, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil
	}
	for _, existing := range u.Rooms {
		if existing == room {
			return nil
		}
	}
	u.Rooms = append(append([]string(nil), u.Rooms...), room)
	sort.Strings(u.Rooms)
	r.users[userID] = u
	return nil
}

func (r *UserRepo) LeaveRoom(ctx context.Context, userID, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil
	}
	rooms := make([]string, 0, len(u.Rooms))
	for _, existing := range u.Rooms {
		if existing != room {
			rooms = append(rooms, existing)
		}
	}
	u.Rooms = rooms
	r.users[userID] = u
	return nil
}

func (r *UserRepo) ScanOnline(ctx context.Context) ([]domain.User, error) {
	return r.scan(func(u domain.User) bool {
		return u.Status != domain.StatusOffline
	}), nil
}

func (r *UserRepo) ScanOnlineInactiveSince(ctx context.Context, cutoff time.Time) ([]domain.User, error) {
	return r.scan(func(u domain.User) bool {
		return u.Status == domain.StatusOnline && !u.LastActivity.After(cutoff)
	}), nil
}

func (r *UserRepo) scan(match func(domain.User) bool) []domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.User
	for _, u := range r.users {
		if match(u) {
			out = append(out, clone(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func clone(u domain.User) domain.User {
	if u.Rooms != nil {
		u.Rooms = append([]string(nil), u.Rooms...)
	}
	return u
}
