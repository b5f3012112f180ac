package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/iamasit07/chat-presence/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type sessionRow struct {
	ID                 string    `db:"id"`
	UserID             string    `db:"user_id"`
	LastActivity       time.Time `db:"last_activity"`
	LastClientActivity time.Time `db:"last_client_activity"`
	UserAgent          string    `db:"user_agent"`
}

func (r sessionRow) toDomain() domain.ClientSession {
	return domain.ClientSession{
		ID:                 r.ID,
		UserID:             r.UserID,
		LastActivity:       r.LastActivity.UTC(),
		LastClientActivity: r.LastClientActivity.UTC(),
		UserAgent:          r.UserAgent,
	}
}

const sessionColumns = `id, user_id, last_activity, last_client_activity, user_agent`

type SessionRepo struct {
	DB *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{DB: db}
}

func (r *SessionRepo) GetByID(ctx context.Context, connectionID string) (*domain.ClientSession, error) {
	var row sessionRow
	err := r.DB.GetContext(ctx, &row, `SELECT `+sessionColumns+` FROM client_sessions WHERE id = $1`, connectionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session")
	}
	s := row.toDomain()
	return &s, nil
}

func (r *SessionRepo) Insert(ctx context.Context, session *domain.ClientSession) error {
	query := `
	INSERT INTO client_sessions (id, user_id, last_activity, last_client_activity, user_agent)
	VALUES ($1, $2, $3, $4, $5);
	`
	_, err := r.DB.ExecContext(ctx, query,
		session.ID, session.UserID, session.LastActivity, session.LastClientActivity, session.UserAgent)
	if isUniqueViolation(err) {
		return domain.ErrSessionExists
	}
	if err != nil {
		return errors.Wrap(err, "failed to insert session")
	}
	return nil
}

func (r *SessionRepo) Update(ctx context.Context, session *domain.ClientSession) error {
	query := `
	UPDATE client_sessions
	SET user_id = $2, last_activity = $3, last_client_activity = $4, user_agent = $5
	WHERE id = $1;
	`
	_, err := r.DB.ExecContext(ctx, query,
		session.ID, session.UserID, session.LastActivity, session.LastClientActivity, session.UserAgent)
	if err != nil {
		return errors.Wrap(err, "failed to update session")
	}
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, session *domain.ClientSession) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM client_sessions WHERE id = $1`, session.ID); err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	return nil
}

func (r *SessionRepo) ScanStaleOlderThan(ctx context.Context, cutoff time.Time) ([]domain.ClientSession, error) {
	var rows []sessionRow
	err := r.DB.SelectContext(ctx, &rows,
		`SELECT `+sessionColumns+` FROM client_sessions WHERE last_activity <= $1 ORDER BY id`, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan stale sessions")
	}
	sessions := make([]domain.ClientSession, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, row.toDomain())
	}
	return sessions, nil
}

func (r *SessionRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM client_sessions WHERE user_id = $1`, userID); err != nil {
		return 0, errors.Wrap(err, "failed to count sessions")
	}
	return n, nil
}
