package websocket

import "github.com/iamasit07/chat-presence/internal/domain"

// ClientMessage is a frame sent by a connected client.
type ClientMessage struct {
	Type string `json:"type"` // "join", "leave" or "activity"
	Room string `json:"room,omitempty"`
}

// ServerMessage is a frame pushed to connected clients.
type ServerMessage struct {
	Type         string            `json:"type"`
	ConnectionID string            `json:"connectionId,omitempty"`
	Room         string            `json:"room,omitempty"`
	User         *domain.UserView  `json:"user,omitempty"`
	Users        []domain.UserView `json:"users,omitempty"`
	Message      string            `json:"message,omitempty"`
}

const (
	TypeConnected     = "connected"
	TypeUserLeft      = "user_left"
	TypeUsersInactive = "users_inactive"
	TypeError         = "error"
)
