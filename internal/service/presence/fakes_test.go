package presence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iamasit07/chat-presence/internal/domain"
)

// fakeTransport is a connection source and resolver in one, like the real
// websocket connection manager.
type fakeTransport struct {
	mu      sync.Mutex
	conns   []domain.Connection
	err     error
	calls   int
	block   chan struct{} // when set, ListAliveConnections waits for it or ctx
	entered chan struct{}
}

func (f *fakeTransport) ListAliveConnections(ctx context.Context) ([]domain.Connection, error) {
	f.mu.Lock()
	f.calls++
	block, entered := f.block, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.conns, f.err
}

func (f *fakeTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ResolveChannelAndUser accepts the bare "chat" descriptor with a user id.
func (f *fakeTransport) ResolveChannelAndUser(meta domain.ConnectionMetadata) (domain.ChannelIdentity, error) {
	switch {
	case meta.ConnectionData == "":
		return domain.ChannelIdentity{}, domain.ErrMetadataMissing
	case meta.ConnectionData != "chat":
		return domain.ChannelIdentity{}, domain.ErrForeignChannel
	case meta.UserID == "":
		return domain.ChannelIdentity{}, domain.ErrNoPrincipal
	}
	return domain.ChannelIdentity{Channel: "chat", UserID: meta.UserID, UserAgent: meta.UserAgent}, nil
}

type leaveCall struct {
	Room string
	User string
}

type inactiveCall struct {
	Room  string
	Users []string
}

type recordingBroadcaster struct {
	mu        sync.Mutex
	leaves    []leaveCall
	inactive  []inactiveCall
	failRoom  map[string]error
	panicRoom string
}

func (b *recordingBroadcaster) check(room string) error {
	if room == b.panicRoom {
		panic("subscriber exploded")
	}
	return b.failRoom[room]
}

func (b *recordingBroadcaster) Leave(ctx context.Context, room string, user domain.UserView) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(room); err != nil {
		return err
	}
	b.leaves = append(b.leaves, leaveCall{Room: room, User: user.ID})
	return nil
}

func (b *recordingBroadcaster) MarkInactive(ctx context.Context, room string, users []domain.UserView) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(room); err != nil {
		return err
	}
	call := inactiveCall{Room: room}
	for _, u := range users {
		call.Users = append(call.Users, u.ID)
	}
	b.inactive = append(b.inactive, call)
	return nil
}

func (b *recordingBroadcaster) counts() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.leaves), len(b.inactive)
}

// failingUsers wraps a user store and fails ScanOnline while err is set.
type failingUsers struct {
	UserStore
	err error
}

func (f *failingUsers) ScanOnline(ctx context.Context) ([]domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.UserStore.ScanOnline(ctx)
}

var errStoreDown = errors.New("store unavailable")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
