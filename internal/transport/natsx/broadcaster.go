package natsx

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/iamasit07/chat-presence/internal/domain"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	SubjectLeave    = "presence.leave"
	SubjectInactive = "presence.inactive"
)

// Event is the payload published for every room notification.
type Event struct {
	ID     string            `json:"id"`
	Type   string            `json:"type"` // "leave" or "inactive"
	Origin string            `json:"origin"`
	Room   string            `json:"room"`
	Users  []domain.UserView `json:"users"`
	At     time.Time         `json:"at"`
}

type Publisher interface {
	PublishMsg(msg *nats.Msg) error
}

type IDGenerator interface {
	Next() string
}

// Broadcaster publishes room notifications so that other instances can
// deliver them to their own websocket listeners.
type Broadcaster struct {
	pub    Publisher
	ids    IDGenerator
	origin string
	now    func() time.Time
}

func NewBroadcaster(pub Publisher, ids IDGenerator, origin string) *Broadcaster {
	return &Broadcaster{pub: pub, ids: ids, origin: origin, now: time.Now}
}

func (b *Broadcaster) Leave(ctx context.Context, room string, user domain.UserView) error {
	return b.publish(ctx, SubjectLeave, "leave", room, []domain.UserView{user})
}

func (b *Broadcaster) MarkInactive(ctx context.Context, room string, users []domain.UserView) error {
	return b.publish(ctx, SubjectInactive, "inactive", room, users)
}

func (b *Broadcaster) publish(ctx context.Context, prefix, kind, room string, users []domain.UserView) error {
	data, err := json.Marshal(Event{
		ID:     b.ids.Next(),
		Type:   kind,
		Origin: b.origin,
		Room:   room,
		Users:  users,
		At:     b.now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to encode presence event")
	}

	subject := prefix + "." + subjectToken(room)
	ctx, span := startSpan(ctx, trace.SpanKindProducer, subject+" publish", subject, len(data))
	defer span.End()

	err = b.pub.PublishMsg(&nats.Msg{Subject: subject, Data: data, Header: injectContext(ctx)})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return errors.Wrapf(err, "failed to publish %s", subject)
	}
	return nil
}

// subjectToken turns a room name into a single NATS subject token.
func subjectToken(room string) string {
	if room == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, room)
}
