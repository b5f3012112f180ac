package domain

// ConnectionMetadata is what the transport knows about how a connection was opened.
type ConnectionMetadata struct {
	// ConnectionData is the raw channel descriptor the client sent on connect,
	// a JSON array of {"name": "..."} objects.
	ConnectionData string
	// UserID is the authenticated principal, empty for anonymous connections.
	UserID    string
	UserAgent string
}

type Connection struct {
	ID       string
	Alive    bool
	Metadata ConnectionMetadata
}

type ChannelIdentity struct {
	Channel   string
	UserID    string
	UserAgent string
}
