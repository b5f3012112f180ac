package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/iamasit07/chat-presence/internal/domain"
	"github.com/iamasit07/chat-presence/pkg/auth"
	"github.com/iamasit07/chat-presence/pkg/httputil"
	"github.com/iamasit07/chat-presence/pkg/uid"
	"github.com/iamasit07/chat-presence/pkg/useragent"
	"go.uber.org/zap"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	opTimeout  = 5 * time.Second
)

// ActivityRecorder persists what happens on chat connections.
type ActivityRecorder interface {
	Connect(ctx context.Context, connID, userID, userAgent string) (*domain.User, error)
	Touch(ctx context.Context, connID string) error
	Disconnect(ctx context.Context, connID string) error
	JoinRoom(ctx context.Context, connID, userID, room string) error
	LeaveRoom(ctx context.Context, connID, userID, room string) error
}

// Handler manages WebSocket dependencies
type Handler struct {
	ConnManager *ConnectionManager
	Activity    ActivityRecorder
	JWTSecret   string
	Upgrader    websocket.Upgrader
	Logger      *zap.Logger
}

func NewHandler(cm *ConnectionManager, activity ActivityRecorder, jwtSecret string, allowedOrigins []string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		ConnManager: cm,
		Activity:    activity,
		JWTSecret:   jwtSecret,
		Logger:      log,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// HandleWebSocket authenticates the request, upgrades it and serves the
// connection until it closes. Requests without a token connect anonymously
// and are never tracked for presence.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	var userID string
	if token, err := httputil.GetTokenFromRequest(r); err == nil {
		claims, err := auth.ValidateAccessToken(h.JWTSecret, token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		userID = claims.UserID
	}

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(uid.NewConnectionID(), conn, domain.ConnectionMetadata{
		ConnectionData: r.URL.Query().Get("connectionData"),
		UserID:         userID,
		UserAgent:      r.UserAgent(),
	})
	h.Logger.Info("connection opened",
		zap.String("connection_id", c.id),
		zap.String("user_id", userID),
		zap.String("device", useragent.Describe(c.metadata.UserAgent)),
		zap.String("ip", useragent.ExtractIPAddress(r)))

	h.serve(r.Context(), c)
}

func (h *Handler) serve(ctx context.Context, c *client) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	h.ConnManager.add(c)
	defer c.conn.Close()
	defer h.ConnManager.remove(c.id)

	identity, resolveErr := ResolveChannel(c.metadata)
	tracked := resolveErr == nil
	if tracked {
		if !h.connect(ctx, c, identity) {
			return
		}
		defer h.disconnect(c)
	}

	if err := c.write(ServerMessage{Type: TypeConnected, ConnectionID: c.id}); err != nil {
		return
	}

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		h.ConnManager.markSeen(c.id)
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.keepAlive(ctx, c)
	go c.writePump(h.Logger)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Logger.Debug("connection closed unexpectedly", zap.String("connection_id", c.id), zap.Error(err))
			}
			return
		}
		h.ConnManager.markSeen(c.id)
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.write(ServerMessage{Type: TypeError, Message: "invalid message format"})
			continue
		}
		if !tracked {
			continue
		}
		if err := h.processMessage(ctx, c, identity.UserID, msg); err != nil {
			h.Logger.Warn("failed to record activity",
				zap.String("connection_id", c.id), zap.String("type", msg.Type), zap.Error(err))
			c.write(ServerMessage{Type: TypeError, Message: err.Error()})
		}
	}
}

func (h *Handler) connect(ctx context.Context, c *client, identity domain.ChannelIdentity) bool {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	user, err := h.Activity.Connect(opCtx, c.id, identity.UserID, identity.UserAgent)
	if err != nil {
		msg := "unable to register connection"
		if errors.Is(err, domain.ErrUserNotFound) {
			msg = "unknown user"
		} else {
			h.Logger.Error("connect failed", zap.String("connection_id", c.id), zap.Error(err))
		}
		c.write(ServerMessage{Type: TypeError, Message: msg})
		return false
	}
	for _, room := range user.Rooms {
		h.ConnManager.joinRoom(c.id, room)
	}
	return true
}

func (h *Handler) disconnect(c *client) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := h.Activity.Disconnect(ctx, c.id); err != nil {
		h.Logger.Warn("disconnect not recorded, the presence check will expire it",
			zap.String("connection_id", c.id), zap.Error(err))
	}
}

func (h *Handler) processMessage(ctx context.Context, c *client, userID string, msg ClientMessage) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	switch msg.Type {
	case "join":
		if msg.Room == "" {
			return errors.New("room is required")
		}
		if err := h.Activity.JoinRoom(ctx, c.id, userID, msg.Room); err != nil {
			return err
		}
		h.ConnManager.joinRoom(c.id, msg.Room)
	case "leave":
		if msg.Room == "" {
			return errors.New("room is required")
		}
		h.ConnManager.leaveRoom(c.id, msg.Room)
		return h.Activity.LeaveRoom(ctx, c.id, userID, msg.Room)
	case "activity":
		return h.Activity.Touch(ctx, c.id)
	default:
		return errors.New("unknown message type")
	}
	return nil
}

func (h *Handler) keepAlive(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
