package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iamasit07/chat-presence/internal/domain"
	"github.com/iamasit07/chat-presence/internal/repository/memory"
	"github.com/iamasit07/chat-presence/internal/service/presence"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMapCache() *mapCache { return &mapCache{data: map[string]string{}} }

func (m *mapCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value.(string)
	return nil
}

func (m *mapCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (m *mapCache) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return m.err
}

// countingStore counts CountByUser calls that reach the backing store.
type countingStore struct {
	*memory.SessionRepo
	counts int
}

func (s *countingStore) CountByUser(ctx context.Context, userID string) (int, error) {
	s.counts++
	return s.SessionRepo.CountByUser(ctx, userID)
}

func TestCachedSessionStore_CachesCounts(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{SessionRepo: memory.NewSessionRepo()}
	store := NewCachedSessionStore(backing, newMapCache(), nil)
	backing.Insert(ctx, &domain.ClientSession{ID: "c1", UserID: "u1"})

	for i := 0; i < 3; i++ {
		n, err := store.CountByUser(ctx, "u1")
		if err != nil || n != 1 {
			t.Fatalf("CountByUser = %d, %v", n, err)
		}
	}
	if backing.counts != 1 {
		t.Errorf("backing store hit %d times, want 1", backing.counts)
	}
}

func TestCachedSessionStore_InvalidatesOnInsertAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewCachedSessionStore(memory.NewSessionRepo(), newMapCache(), nil)

	if n, _ := store.CountByUser(ctx, "u1"); n != 0 {
		t.Fatalf("initial count = %d", n)
	}

	s := &domain.ClientSession{ID: "c1", UserID: "u1"}
	store.Insert(ctx, s)
	if n, _ := store.CountByUser(ctx, "u1"); n != 1 {
		t.Errorf("count after insert = %d, want 1", n)
	}

	store.Delete(ctx, s)
	if n, _ := store.CountByUser(ctx, "u1"); n != 0 {
		t.Errorf("count after delete = %d, want 0", n)
	}
}

func TestCachedSessionStore_InvalidatesBothUsersOnReassign(t *testing.T) {
	ctx := context.Background()
	store := NewCachedSessionStore(memory.NewSessionRepo(), newMapCache(), nil)
	store.Insert(ctx, &domain.ClientSession{ID: "c1", UserID: "u1"})
	store.CountByUser(ctx, "u1")
	store.CountByUser(ctx, "u2")

	store.Update(ctx, &domain.ClientSession{ID: "c1", UserID: "u2"})

	if n, _ := store.CountByUser(ctx, "u1"); n != 0 {
		t.Errorf("u1 count = %d, want 0", n)
	}
	if n, _ := store.CountByUser(ctx, "u2"); n != 1 {
		t.Errorf("u2 count = %d, want 1", n)
	}
}

func TestCachedSessionStore_FallsThroughOnCacheError(t *testing.T) {
	ctx := context.Background()
	cache := newMapCache()
	cache.err = errors.New("connection refused")
	store := NewCachedSessionStore(memory.NewSessionRepo(), cache, nil)
	store.Insert(ctx, &domain.ClientSession{ID: "c1", UserID: "u1"})

	n, err := store.CountByUser(ctx, "u1")
	if err != nil || n != 1 {
		t.Errorf("CountByUser = %d, %v, want 1, nil", n, err)
	}
}

// interleavedStore runs between once, after reading a count and before
// returning it: a write landing between the store read and the cache fill.
type interleavedStore struct {
	*memory.SessionRepo
	between func()
}

func (s *interleavedStore) CountByUser(ctx context.Context, userID string) (int, error) {
	n, err := s.SessionRepo.CountByUser(ctx, userID)
	if f := s.between; f != nil {
		s.between = nil
		f()
	}
	return n, err
}

type noConnections struct{}

func (noConnections) ListAliveConnections(ctx context.Context) ([]domain.Connection, error) {
	return nil, nil
}

func (noConnections) ResolveChannelAndUser(meta domain.ConnectionMetadata) (domain.ChannelIdentity, error) {
	return domain.ChannelIdentity{}, domain.ErrMetadataMissing
}

type leaveCounter struct{ leaves int }

func (b *leaveCounter) Leave(ctx context.Context, room string, user domain.UserView) error {
	b.leaves++
	return nil
}

func (b *leaveCounter) MarkInactive(ctx context.Context, room string, users []domain.UserView) error {
	return nil
}

func TestCachedSessionStore_LiveCountsIgnoreRacedFill(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	backing := &interleavedStore{SessionRepo: memory.NewSessionRepo()}
	cached := NewCachedSessionStore(backing, newMapCache(), nil)

	backing.between = func() {
		if err := cached.Insert(ctx, &domain.ClientSession{ID: "c1", UserID: "u1", LastActivity: now}); err != nil {
			t.Fatal(err)
		}
	}
	if n, _ := cached.CountByUser(ctx, "u1"); n != 0 {
		t.Fatalf("raced read = %d, want the pre-insert 0", n)
	}

	live := cached.LiveCounts()
	if n, err := live.CountByUser(ctx, "u1"); err != nil || n != 1 {
		t.Fatalf("live count = %d, %v; want 1", n, err)
	}

	users := memory.NewUserRepo()
	users.Put(domain.User{ID: "u1", Status: domain.StatusOnline, LastActivity: now, Rooms: []string{"lobby"}})
	broadcaster := &leaveCounter{}
	presence.NewReconciler(presence.Options{
		Connections: noConnections{},
		Resolver:    noConnections{},
		Sessions:    live,
		Users:       users,
		Broadcaster: broadcaster,
		Now:         func() time.Time { return now },
	}).RunTick(ctx)

	u, _ := users.GetByID(ctx, "u1")
	if u.Status != domain.StatusOnline || broadcaster.leaves != 0 {
		t.Errorf("status = %v, leaves = %d; a connected user must stay online", u.Status, broadcaster.leaves)
	}
}

func TestCachedSessionStore_LiveCountsStillInvalidate(t *testing.T) {
	ctx := context.Background()
	cache := newMapCache()
	cached := NewCachedSessionStore(memory.NewSessionRepo(), cache, nil)

	cached.CountByUser(ctx, "u1")
	if err := cached.LiveCounts().Insert(ctx, &domain.ClientSession{ID: "c1", UserID: "u1"}); err != nil {
		t.Fatal(err)
	}
	if n, _ := cached.CountByUser(ctx, "u1"); n != 1 {
		t.Errorf("cached count after insert through live view = %d, want 1", n)
	}
}
