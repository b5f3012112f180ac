package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iamasit07/chat-presence/internal/domain"
)

// SessionRepo keeps client sessions in process memory.
type SessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]domain.ClientSession
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{sessions: make(map[string]domain.ClientSession)}
}

func (r *SessionRepo) GetByID(ctx context.Context, connectionID string) (*domain.ClientSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connectionID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *SessionRepo) Insert(ctx context.Context, session *domain.ClientSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[session.ID]; exists {
		return domain.ErrSessionExists
	}
	r.sessions[session.ID] = *session
	return nil
}

// Update replaces the stored session. Updating a missing session is a no-op,
// matching an UPDATE that touches no rows.
func (r *SessionRepo) Update(ctx context.Context, session *domain.ClientSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[session.ID]; exists {
		r.sessions[session.ID] = *session
	}
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, session *domain.ClientSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, session.ID)
	return nil
}

func (r *SessionRepo) ScanStaleOlderThan(ctx context.Context, cutoff time.Time) ([]domain.ClientSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stale []domain.ClientSession
	for _, s := range r.sessions {
		if !s.LastActivity.After(cutoff) {
			stale = append(stale, s)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].ID < stale[j].ID })
	return stale, nil
}

func (r *SessionRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n, nil
}

// All returns every stored session ordered by id.
func (r *SessionRepo) All() []domain.ClientSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]domain.ClientSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}
