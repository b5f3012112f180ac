package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/iamasit07/chat-presence/internal/domain"
	"go.uber.org/zap"
)

const (
	clientCountKeyPrefix = "presence:clients:"
	clientCountTTL       = 30 * time.Second
)

// ErrCacheMiss is returned by a CacheRepository for a missing key.
const ErrCacheMiss = domain.Error("cache miss")

type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type SessionStore interface {
	GetByID(ctx context.Context, connectionID string) (*domain.ClientSession, error)
	Insert(ctx context.Context, session *domain.ClientSession) error
	Update(ctx context.Context, session *domain.ClientSession) error
	Delete(ctx context.Context, session *domain.ClientSession) error
	ScanStaleOlderThan(ctx context.Context, cutoff time.Time) ([]domain.ClientSession, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

// CachedSessionStore caches per-user client counts in front of a session
// store for read paths that tolerate a lagging answer. Every mutation that
// can change a count drops the cached value, but a fill that read the store
// before a concurrent write can still land after that write's invalidation,
// so a cached count may be wrong for up to clientCountTTL. Anything that
// changes presence state on the strength of a count must use LiveCounts.
// Cache errors fall through to the underlying store.
type CachedSessionStore struct {
	SessionStore
	cache CacheRepository
	log   *zap.Logger
}

func NewCachedSessionStore(store SessionStore, cache CacheRepository, log *zap.Logger) *CachedSessionStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedSessionStore{SessionStore: store, cache: cache, log: log}
}

func (c *CachedSessionStore) CountByUser(ctx context.Context, userID string) (int, error) {
	key := clientCountKeyPrefix + userID
	if val, err := c.cache.Get(ctx, key); err == nil {
		if n, convErr := strconv.Atoi(val); convErr == nil {
			return n, nil
		}
	} else if err != ErrCacheMiss {
		c.log.Warn("client count cache read failed", zap.String("user_id", userID), zap.Error(err))
	}

	n, err := c.SessionStore.CountByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := c.cache.Set(ctx, key, strconv.Itoa(n), clientCountTTL); err != nil {
		c.log.Warn("failed to cache client count", zap.String("user_id", userID), zap.Error(err))
	}
	return n, nil
}

func (c *CachedSessionStore) Insert(ctx context.Context, session *domain.ClientSession) error {
	err := c.SessionStore.Insert(ctx, session)
	c.invalidate(ctx, session.UserID)
	return err
}

func (c *CachedSessionStore) Update(ctx context.Context, session *domain.ClientSession) error {
	previous, err := c.SessionStore.GetByID(ctx, session.ID)
	if err != nil {
		return err
	}
	if err := c.SessionStore.Update(ctx, session); err != nil {
		return err
	}
	if previous != nil && previous.UserID != session.UserID {
		c.invalidate(ctx, previous.UserID, session.UserID)
	}
	return nil
}

func (c *CachedSessionStore) Delete(ctx context.Context, session *domain.ClientSession) error {
	err := c.SessionStore.Delete(ctx, session)
	c.invalidate(ctx, session.UserID)
	return err
}

func (c *CachedSessionStore) invalidate(ctx context.Context, userIDs ...string) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, clientCountKeyPrefix+id)
	}
	if err := c.cache.Del(ctx, keys...); err != nil {
		c.log.Warn("failed to invalidate client count", zap.Strings("keys", keys), zap.Error(err))
	}
}

// LiveCounts returns a view of c whose CountByUser always reads the
// underlying store. Mutations still go through c and invalidate the cache.
func (c *CachedSessionStore) LiveCounts() SessionStore {
	return liveCountStore{c}
}

type liveCountStore struct {
	*CachedSessionStore
}

func (l liveCountStore) CountByUser(ctx context.Context, userID string) (int, error) {
	return l.SessionStore.CountByUser(ctx, userID)
}
