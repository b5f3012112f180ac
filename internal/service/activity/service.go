package activity

import (
	"context"
	"time"

	"github.com/iamasit07/chat-presence/internal/domain"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type SessionRepository interface {
	GetByID(ctx context.Context, connectionID string) (*domain.ClientSession, error)
	Insert(ctx context.Context, session *domain.ClientSession) error
	Update(ctx context.Context, session *domain.ClientSession) error
	Delete(ctx context.Context, session *domain.ClientSession) error
}

type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	JoinRoom(ctx context.Context, userID, room string) error
	LeaveRoom(ctx context.Context, userID, room string) error
}

// Service records client activity as it happens on the transport. It is
// the only writer that moves users back to Online.
type Service struct {
	sessions SessionRepository
	users    UserRepository
	log      *zap.Logger
	now      func() time.Time
}

func NewService(sessions SessionRepository, users UserRepository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		sessions: sessions,
		users:    users,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Connect registers a chat connection for userID and marks the user Online.
func (s *Service) Connect(ctx context.Context, connID, userID, userAgent string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	now := s.now()
	session := &domain.ClientSession{
		ID:                 connID,
		UserID:             user.ID,
		UserAgent:          userAgent,
		LastActivity:       now,
		LastClientActivity: now,
	}
	if err := s.sessions.Insert(ctx, session); err != nil {
		if !errors.Is(err, domain.ErrSessionExists) {
			return nil, err
		}
		// the reconciler recovered this connection before the handshake finished
		if err := s.sessions.Update(ctx, session); err != nil {
			return nil, err
		}
	}

	user.Status = domain.StatusOnline
	user.LastActivity = now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("client connected",
		zap.String("connection_id", connID),
		zap.String("user_id", user.ID))
	return user, nil
}

// Touch records activity on an existing connection. Unknown connections are
// ignored.
func (s *Service) Touch(ctx context.Context, connID string) error {
	session, err := s.sessions.GetByID(ctx, connID)
	if err != nil || session == nil {
		return err
	}

	now := s.now()
	session.LastActivity = now
	session.LastClientActivity = now
	if err := s.sessions.Update(ctx, session); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil || user == nil {
		return err
	}
	if user.Status != domain.StatusOnline {
		s.log.Debug("user active again", zap.String("user_id", user.ID), zap.Stringer("was", user.Status))
	}
	user.Status = domain.StatusOnline
	user.LastActivity = now
	return s.users.Update(ctx, user)
}

// Disconnect forgets the connection's session. The user's status is left
// for the presence reconciler to settle.
func (s *Service) Disconnect(ctx context.Context, connID string) error {
	session, err := s.sessions.GetByID(ctx, connID)
	if err != nil || session == nil {
		return err
	}
	if err := s.sessions.Delete(ctx, session); err != nil {
		return err
	}
	s.log.Info("client disconnected",
		zap.String("connection_id", connID),
		zap.String("user_id", session.UserID))
	return nil
}

// JoinRoom adds the connection's user to room and counts as activity.
func (s *Service) JoinRoom(ctx context.Context, connID, userID, room string) error {
	if err := s.users.JoinRoom(ctx, userID, room); err != nil {
		return err
	}
	return s.Touch(ctx, connID)
}

func (s *Service) LeaveRoom(ctx context.Context, connID, userID, room string) error {
	if err := s.users.LeaveRoom(ctx, userID, room); err != nil {
		return err
	}
	return s.Touch(ctx, connID)
}
