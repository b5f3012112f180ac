package mongo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	sessionsCollection = "client_sessions"
	usersCollection    = "users"
)

type Config struct {
	URI         string
	Database    string
	MaxPoolSize int
	MaxRetry    int
}

func (c *Config) setDefaults() error {
	if c.URI == "" {
		return errors.New("mongo uri is required")
	}
	if c.Database == "" {
		c.Database = "chat"
	}
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = 100
	}
	if c.MaxRetry <= 0 {
		c.MaxRetry = 3
	}
	return nil
}

// Connect dials MongoDB, retrying a few times while the server comes up,
// and makes sure the indexes the presence queries rely on exist.
func Connect(ctx context.Context, cfg Config, log *zap.Logger) (*mongo.Database, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	opts := options.Client().ApplyURI(cfg.URI).SetMaxPoolSize(uint64(cfg.MaxPoolSize))

	var (
		cli *mongo.Client
		err error
	)
	for i := 0; i < cfg.MaxRetry; i++ {
		cli, err = connect(ctx, opts)
		if err == nil || ctx.Err() != nil {
			break
		}
		log.Warn("mongo not reachable, retrying", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(time.Second / 2)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to MongoDB")
	}

	db := cli.Database(cfg.Database)
	if err := EnsureIndexes(ctx, db); err != nil {
		cli.Disconnect(context.Background())
		return nil, err
	}
	log.Info("mongo connected", zap.String("database", cfg.Database))
	return db, nil
}

func connect(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		cli.Disconnect(context.Background())
		return nil, err
	}
	return cli, nil
}

func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(sessionsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "last_activity", Value: 1}}},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create session indexes")
	}
	_, err = db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "last_activity", Value: 1}},
	})
	return errors.Wrap(err, "failed to create user indexes")
}
