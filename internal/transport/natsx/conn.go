package natsx

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Options struct {
	URL      string
	User     string
	Password string
	Name     string
	Attempts int
}

// Connect dials NATS, retrying while the server comes up. The connection
// reconnects forever once established.
func Connect(ctx context.Context, opts Options, log *zap.Logger) (*nats.Conn, error) {
	if opts.Attempts <= 0 {
		opts.Attempts = 10
	}
	natsOpts := []nats.Option{
		nats.Name(opts.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	if opts.User != "" {
		natsOpts = append(natsOpts, nats.UserInfo(opts.User, opts.Password))
	}

	var (
		nc  *nats.Conn
		err error
	)
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		nc, err = nats.Connect(opts.URL, natsOpts...)
		if err == nil {
			log.Info("NATS connected", zap.String("url", nc.ConnectedUrl()))
			return nc, nil
		}
		log.Warn("NATS not reachable, retrying", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, errors.Wrap(err, "failed to connect to NATS")
}
