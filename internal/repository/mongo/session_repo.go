package mongo

import (
	"context"
	"time"

	"github.com/iamasit07/chat-presence/internal/domain"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type sessionDoc struct {
	ID                 string    `bson:"_id"`
	UserID             string    `bson:"user_id"`
	LastActivity       time.Time `bson:"last_activity"`
	LastClientActivity time.Time `bson:"last_client_activity"`
	UserAgent          string    `bson:"user_agent"`
}

func toSessionDoc(s *domain.ClientSession) sessionDoc {
	return sessionDoc{
		ID:                 s.ID,
		UserID:             s.UserID,
		LastActivity:       s.LastActivity,
		LastClientActivity: s.LastClientActivity,
		UserAgent:          s.UserAgent,
	}
}

func (d sessionDoc) toDomain() domain.ClientSession {
	return domain.ClientSession{
		ID:                 d.ID,
		UserID:             d.UserID,
		LastActivity:       d.LastActivity.UTC(),
		LastClientActivity: d.LastClientActivity.UTC(),
		UserAgent:          d.UserAgent,
	}
}

type SessionRepo struct {
	coll *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) *SessionRepo {
	return &SessionRepo{coll: db.Collection(sessionsCollection)}
}

func (r *SessionRepo) GetByID(ctx context.Context, connectionID string) (*domain.ClientSession, error) {
	var doc sessionDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": connectionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session")
	}
	s := doc.toDomain()
	return &s, nil
}

func (r *SessionRepo) Insert(ctx context.Context, session *domain.ClientSession) error {
	_, err := r.coll.InsertOne(ctx, toSessionDoc(session))
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrSessionExists
	}
	return errors.Wrap(err, "failed to insert session")
}

func (r *SessionRepo) Update(ctx context.Context, session *domain.ClientSession) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": session.ID}, toSessionDoc(session))
	return errors.Wrap(err, "failed to update session")
}

func (r *SessionRepo) Delete(ctx context.Context, session *domain.ClientSession) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": session.ID})
	return errors.Wrap(err, "failed to delete session")
}

func (r *SessionRepo) ScanStaleOlderThan(ctx context.Context, cutoff time.Time) ([]domain.ClientSession, error) {
	cur, err := r.coll.Find(ctx, staleSessionsFilter(cutoff), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan stale sessions")
	}
	var docs []sessionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "failed to decode stale sessions")
	}
	sessions := make([]domain.ClientSession, 0, len(docs))
	for _, d := range docs {
		sessions = append(sessions, d.toDomain())
	}
	return sessions, nil
}

// staleSessionsFilter matches sessions last refreshed at or before cutoff.
func staleSessionsFilter(cutoff time.Time) bson.M {
	return bson.M{"last_activity": bson.M{"$lte": cutoff}}
}

func (r *SessionRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, errors.Wrap(err, "failed to count sessions")
	}
	return int(n), nil
}
