package repository

import (
	"context"
	"time"

	"github.com/iamasit07/chat-presence/internal/config"
	"github.com/iamasit07/chat-presence/internal/domain"
	"github.com/iamasit07/chat-presence/internal/repository/memory"
	"github.com/iamasit07/chat-presence/internal/repository/mongo"
	"github.com/iamasit07/chat-presence/internal/repository/postgres"
	"go.uber.org/zap"
)

const (
	ProviderPostgres = "postgres"
	ProviderMongo    = "mongodb"
	ProviderMemory   = "memory"
)

type SessionStore interface {
	GetByID(ctx context.Context, connectionID string) (*domain.ClientSession, error)
	Insert(ctx context.Context, session *domain.ClientSession) error
	Update(ctx context.Context, session *domain.ClientSession) error
	Delete(ctx context.Context, session *domain.ClientSession) error
	ScanStaleOlderThan(ctx context.Context, cutoff time.Time) ([]domain.ClientSession, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

type UserStore interface {
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	ScanOnline(ctx context.Context) ([]domain.User, error)
	ScanOnlineInactiveSince(ctx context.Context, cutoff time.Time) ([]domain.User, error)
	JoinRoom(ctx context.Context, userID, room string) error
	LeaveRoom(ctx context.Context, userID, room string) error
}

// Stores is an opened persistence backend.
type Stores struct {
	Provider string
	Sessions SessionStore
	Users    UserStore
	Close    func(ctx context.Context) error
}

// Open builds the stores for cfg.StoreProvider.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Stores, error) {
	switch cfg.StoreProvider {
	case ProviderPostgres:
		db, err := postgres.Open(ctx, postgres.Options{
			Driver:             cfg.DBDriver,
			URL:                cfg.DatabaseURL,
			MaxOpenConns:       cfg.DBMaxOpenConns,
			MaxIdleConns:       cfg.DBMaxIdleConns,
			ConnMaxLifetimeMin: cfg.DBConnMaxLifetimeMin,
		}, log)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Provider: ProviderPostgres,
			Sessions: postgres.NewSessionRepo(db),
			Users:    postgres.NewUserRepo(db),
			Close:    func(context.Context) error { return db.Close() },
		}, nil

	case ProviderMongo:
		db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase}, log)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Provider: ProviderMongo,
			Sessions: mongo.NewSessionRepo(db),
			Users:    mongo.NewUserRepo(db),
			Close:    db.Client().Disconnect,
		}, nil

	case ProviderMemory:
		log.Warn("using in-memory stores, state is lost on restart")
		return &Stores{
			Provider: ProviderMemory,
			Sessions: memory.NewSessionRepo(),
			Users:    memory.NewUserRepo(),
			Close:    func(context.Context) error { return nil },
		}, nil
	}
	return nil, domain.ErrUnknownProvider
}
