package domain

import "time"

// ChatChannel is the only logical channel whose connections are tracked as chat sessions.
const ChatChannel = "chat"

const (
	StaleThreshold      = 3 * time.Minute
	InactivityThreshold = 5 * time.Minute
	DefaultTickInterval = 1 * time.Minute
)

// basic errors that can occur
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrUserNotFound      Error = "user not found"
	ErrSessionExists     Error = "session already exists"
	ErrMetadataMissing   Error = "connection metadata missing"
	ErrMetadataMalformed Error = "connection metadata malformed"
	ErrChannelAmbiguous  Error = "connection carries more than one channel"
	ErrForeignChannel    Error = "connection belongs to another channel"
	ErrNoPrincipal       Error = "connection has no authenticated user"
	ErrUnknownProvider   Error = "unknown store provider"
)
