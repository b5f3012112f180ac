package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/iamasit07/chat-presence/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Status       int            `db:"status"`
	LastActivity time.Time      `db:"last_activity"`
	Note         string         `db:"note"`
	AfkNote      string         `db:"afk_note"`
	IsAfk        bool           `db:"is_afk"`
	Flag         string         `db:"flag"`
	Rooms        pq.StringArray `db:"rooms"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:           r.ID,
		Name:         r.Name,
		Status:       domain.UserStatus(r.Status),
		LastActivity: r.LastActivity.UTC(),
		Rooms:        []string(r.Rooms),
		Note:         r.Note,
		AfkNote:      r.AfkNote,
		IsAfk:        r.IsAfk,
		Flag:         r.Flag,
	}
}

// selectUsers returns users with their room memberships; callers append a
// WHERE clause before the grouping.
const selectUsers = `
	SELECT u.id, u.name, u.status, u.last_activity, u.note, u.afk_note, u.is_afk, u.flag,
	       COALESCE(array_agg(m.room ORDER BY m.room) FILTER (WHERE m.room IS NOT NULL), '{}') AS rooms
	FROM users u
	LEFT JOIN room_members m ON m.user_id = u.id
`

const groupUsers = `
	GROUP BY u.id
	ORDER BY u.id
`

type UserRepo struct {
	DB *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{DB: db}
}

func (r *UserRepo) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	var row userRow
	err := r.DB.GetContext(ctx, &row, selectUsers+` WHERE u.id = $1 `+groupUsers, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user")
	}
	u := row.toDomain()
	return &u, nil
}

// Update persists the user's own columns. Room membership is managed with
// JoinRoom and LeaveRoom.
func (r *UserRepo) Update(ctx context.Context, user *domain.User) error {
	query := `
	UPDATE users
	SET name = $2, status = $3, last_activity = $4, note = $5, afk_note = $6, is_afk = $7, flag = $8
	WHERE id = $1;
	`
	_, err := r.DB.ExecContext(ctx, query,
		user.ID, user.Name, int(user.Status), user.LastActivity, user.Note, user.AfkNote, user.IsAfk, user.Flag)
	if err != nil {
		return errors.Wrap(err, "failed to update user")
	}
	return nil
}

func (r *UserRepo) ScanOnline(ctx context.Context) ([]domain.User, error) {
	return r.scan(ctx, selectUsers+` WHERE u.status <> $1 `+groupUsers, int(domain.StatusOffline))
}

func (r *UserRepo) ScanOnlineInactiveSince(ctx context.Context, cutoff time.Time) ([]domain.User, error) {
	return r.scan(ctx, selectUsers+` WHERE u.status = $1 AND u.last_activity <= $2 `+groupUsers,
		int(domain.StatusOnline), cutoff)
}

func (r *UserRepo) JoinRoom(ctx context.Context, userID, room string) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO room_members (room, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, room, userID)
	return errors.Wrap(err, "failed to join room")
}

func (r *UserRepo) LeaveRoom(ctx context.Context, userID, room string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM room_members WHERE room = $1 AND user_id = $2`, room, userID)
	return errors.Wrap(err, "failed to leave room")
}

func (r *UserRepo) scan(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	var rows []userRow
	if err := r.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to scan users")
	}
	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toDomain())
	}
	return users, nil
}
