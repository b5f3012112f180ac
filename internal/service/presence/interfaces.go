package presence

import (
	"context"
	"time"

	"github.com/iamasit07/chat-presence/internal/domain"
)

// ConnectionSource reports the transport connections known to this process.
type ConnectionSource interface {
	ListAliveConnections(ctx context.Context) ([]domain.Connection, error)
}

// ChannelResolver turns transport metadata into the owning user of a chat connection.
type ChannelResolver interface {
	ResolveChannelAndUser(meta domain.ConnectionMetadata) (domain.ChannelIdentity, error)
}

type SessionStore interface {
	// GetByID returns nil, nil when no session exists for the connection.
	GetByID(ctx context.Context, connectionID string) (*domain.ClientSession, error)
	Insert(ctx context.Context, session *domain.ClientSession) error
	Update(ctx context.Context, session *domain.ClientSession) error
	Delete(ctx context.Context, session *domain.ClientSession) error
	// ScanStaleOlderThan returns sessions whose last activity is at or before cutoff.
	ScanStaleOlderThan(ctx context.Context, cutoff time.Time) ([]domain.ClientSession, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

type UserStore interface {
	// GetByID returns nil, nil when the user does not exist.
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	// ScanOnline returns users whose status is Online or Inactive.
	ScanOnline(ctx context.Context) ([]domain.User, error)
	// ScanOnlineInactiveSince returns Online users whose last activity is at or before cutoff.
	ScanOnlineInactiveSince(ctx context.Context, cutoff time.Time) ([]domain.User, error)
}

// RoomBroadcaster hands presence events to a room's live subscribers.
// Delivery is fire-and-forget; an error only means the event could not be handed off.
type RoomBroadcaster interface {
	Leave(ctx context.Context, room string, user domain.UserView) error
	MarkInactive(ctx context.Context, room string, users []domain.UserView) error
}
