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

type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Status       int       `bson:"status"`
	LastActivity time.Time `bson:"last_activity"`
	Rooms        []string  `bson:"rooms,omitempty"`
	Note         string    `bson:"note"`
	AfkNote      string    `bson:"afk_note"`
	IsAfk        bool      `bson:"is_afk"`
	Flag         string    `bson:"flag"`
}

func (d userDoc) toDomain() domain.User {
	return domain.User{
		ID:           d.ID,
		Name:         d.Name,
		Status:       domain.UserStatus(d.Status),
		LastActivity: d.LastActivity.UTC(),
		Rooms:        d.Rooms,
		Note:         d.Note,
		AfkNote:      d.AfkNote,
		IsAfk:        d.IsAfk,
		Flag:         d.Flag,
	}
}

type UserRepo struct {
	coll *mongo.Collection
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{coll: db.Collection(usersCollection)}
}

func (r *UserRepo) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	var doc userDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user")
	}
	u := doc.toDomain()
	return &u, nil
}

// Update sets the user's own fields and leaves room membership untouched.
func (r *UserRepo) Update(ctx context.Context, user *domain.User) error {
	_, err := r.coll.UpdateByID(ctx, user.ID, bson.M{"$set": bson.M{
		"name":          user.Name,
		"status":        int(user.Status),
		"last_activity": user.LastActivity,
		"note":          user.Note,
		"afk_note":      user.AfkNote,
		"is_afk":        user.IsAfk,
		"flag":          user.Flag,
	}})
	return errors.Wrap(err, "failed to update user")
}

func (r *UserRepo) ScanOnline(ctx context.Context) ([]domain.User, error) {
	return r.scan(ctx, onlineUsersFilter())
}

func (r *UserRepo) ScanOnlineInactiveSince(ctx context.Context, cutoff time.Time) ([]domain.User, error) {
	return r.scan(ctx, inactiveUsersFilter(cutoff))
}

// onlineUsersFilter matches Online and Inactive users.
func onlineUsersFilter() bson.M {
	return bson.M{"status": bson.M{"$ne": int(domain.StatusOffline)}}
}

// inactiveUsersFilter matches Online users whose last activity is at or
// before cutoff.
func inactiveUsersFilter(cutoff time.Time) bson.M {
	return bson.M{
		"status":        int(domain.StatusOnline),
		"last_activity": bson.M{"$lte": cutoff},
	}
}

func (r *UserRepo) JoinRoom(ctx context.Context, userID, room string) error {
	_, err := r.coll.UpdateByID(ctx, userID, bson.M{"$addToSet": bson.M{"rooms": room}})
	return errors.Wrap(err, "failed to join room")
}

func (r *UserRepo) LeaveRoom(ctx context.Context, userID, room string) error {
	_, err := r.coll.UpdateByID(ctx, userID, bson.M{"$pull": bson.M{"rooms": room}})
	return errors.Wrap(err, "failed to leave room")
}

func (r *UserRepo) scan(ctx context.Context, filter bson.M) ([]domain.User, error) {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan users")
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "failed to decode users")
	}
	users := make([]domain.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toDomain())
	}
	return users, nil
}
