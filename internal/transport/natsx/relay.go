package natsx

import (
	"context"
	"encoding/json"

	"github.com/iamasit07/chat-presence/internal/domain"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// LocalBroadcaster delivers room notifications to this instance's clients.
type LocalBroadcaster interface {
	Leave(ctx context.Context, room string, user domain.UserView) error
	MarkInactive(ctx context.Context, room string, users []domain.UserView) error
}

// Relay hands events published by other instances to local listeners.
// Events from its own origin are ignored; those were delivered locally
// when they were raised.
type Relay struct {
	local  LocalBroadcaster
	origin string
	log    *zap.Logger
}

func NewRelay(local LocalBroadcaster, origin string, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{local: local, origin: origin, log: log}
}

// Subscribe starts relaying every presence subject.
func (r *Relay) Subscribe(nc *nats.Conn) (*nats.Subscription, error) {
	return nc.Subscribe("presence.*.*", r.Handle)
}

func (r *Relay) Handle(msg *nats.Msg) {
	ctx, span := startConsumerSpan(context.Background(), msg)
	defer span.End()

	var ev Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		r.log.Warn("dropping malformed presence event", zap.String("subject", msg.Subject), zap.Error(err))
		return
	}
	if ev.Origin == r.origin {
		return
	}

	var err error
	switch ev.Type {
	case "leave":
		for _, u := range ev.Users {
			if e := r.local.Leave(ctx, ev.Room, u); e != nil {
				err = e
			}
		}
	case "inactive":
		err = r.local.MarkInactive(ctx, ev.Room, ev.Users)
	default:
		r.log.Debug("ignoring presence event", zap.String("type", ev.Type))
		return
	}
	if err != nil {
		r.log.Warn("failed to relay presence event", zap.String("event_id", ev.ID), zap.Error(err))
	}
}
