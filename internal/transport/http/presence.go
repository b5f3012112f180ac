package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/chat-presence/internal/domain"
	"github.com/iamasit07/chat-presence/internal/service/presence"
	"go.uber.org/zap"
)

type ReportSource interface {
	LastReport() *presence.TickReport
}

type UserReader interface {
	GetByID(ctx context.Context, userID string) (*domain.User, error)
}

type ClientCounter interface {
	CountByUser(ctx context.Context, userID string) (int, error)
}

type RoomLister interface {
	Rooms() []domain.Room
}

type PresenceHandler struct {
	Reports  ReportSource
	Users    UserReader
	Sessions ClientCounter
	Rooms    RoomLister
	Logger   *zap.Logger
}

func NewPresenceHandler(reports ReportSource, users UserReader, sessions ClientCounter, rooms RoomLister, log *zap.Logger) *PresenceHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PresenceHandler{Reports: reports, Users: users, Sessions: sessions, Rooms: rooms, Logger: log}
}

// ListRooms returns the rooms with listeners connected to this instance.
func (h *PresenceHandler) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.Rooms.Rooms())
}

// LastTick returns the report of the most recent presence check.
func (h *PresenceHandler) LastTick(c *gin.Context) {
	report := h.Reports.LastReport()
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no presence check has run yet"})
		return
	}
	c.JSON(http.StatusOK, report)
}

type userPresenceResponse struct {
	domain.UserView
	Rooms            []string `json:"rooms"`
	ConnectedClients int      `json:"connectedClients"`
}

// GetUserPresence returns a user's status and how many clients they have.
func (h *PresenceHandler) GetUserPresence(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("id")

	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		h.Logger.Error("failed to load user", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrUserNotFound.Error()})
		return
	}

	clients, err := h.Sessions.CountByUser(ctx, userID)
	if err != nil {
		h.Logger.Error("failed to count clients", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count clients"})
		return
	}

	rooms := user.Rooms
	if rooms == nil {
		rooms = []string{}
	}
	c.JSON(http.StatusOK, userPresenceResponse{
		UserView:         user.View(),
		Rooms:            rooms,
		ConnectedClients: clients,
	})
}
