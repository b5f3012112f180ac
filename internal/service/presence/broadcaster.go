package presence

import (
	"context"
	"errors"
	"fmt"

	"github.com/iamasit07/chat-presence/internal/domain"
)

// MultiBroadcaster delivers every event to each of its broadcasters,
// e.g. local websocket subscribers and other instances over NATS.
type MultiBroadcaster []RoomBroadcaster

func (m MultiBroadcaster) Leave(ctx context.Context, room string, user domain.UserView) error {
	var errs []error
	for _, b := range m {
		if err := deliver(func() error { return b.Leave(ctx, room, user) }); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiBroadcaster) MarkInactive(ctx context.Context, room string, users []domain.UserView) error {
	var errs []error
	for _, b := range m {
		if err := deliver(func() error { return b.MarkInactive(ctx, room, users) }); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// deliver runs one broadcaster's send, turning a panic into an error so the
// remaining broadcasters still get the event.
func deliver(send func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("broadcaster panic: %v", p)
		}
	}()
	return send()
}

// leaveEach sends one Leave per user. A failed send does not stop the
// users after it.
func leaveEach(ctx context.Context, b RoomBroadcaster, room string, users []domain.UserView) error {
	var errs []error
	for _, user := range users {
		if err := b.Leave(ctx, room, user); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
