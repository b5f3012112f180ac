package websocket

import (
	"encoding/json"
	"strings"

	"github.com/iamasit07/chat-presence/internal/domain"
)

type channelDescriptor struct {
	Name string `json:"name"`
}

// ResolveChannel extracts the single logical channel a connection was opened
// for. ConnectionData must be a JSON array with exactly one named entry, and
// only the chat channel with an authenticated user resolves.
func ResolveChannel(meta domain.ConnectionMetadata) (domain.ChannelIdentity, error) {
	raw := strings.TrimSpace(meta.ConnectionData)
	if raw == "" {
		return domain.ChannelIdentity{}, domain.ErrMetadataMissing
	}

	var channels []channelDescriptor
	if err := json.Unmarshal([]byte(raw), &channels); err != nil {
		return domain.ChannelIdentity{}, domain.ErrMetadataMalformed
	}
	switch {
	case len(channels) == 0:
		return domain.ChannelIdentity{}, domain.ErrMetadataMissing
	case len(channels) > 1:
		return domain.ChannelIdentity{}, domain.ErrChannelAmbiguous
	}

	name := strings.TrimSpace(channels[0].Name)
	if name == "" {
		return domain.ChannelIdentity{}, domain.ErrMetadataMalformed
	}
	if !strings.EqualFold(name, domain.ChatChannel) {
		return domain.ChannelIdentity{}, domain.ErrForeignChannel
	}
	if meta.UserID == "" {
		return domain.ChannelIdentity{}, domain.ErrNoPrincipal
	}

	return domain.ChannelIdentity{
		Channel:   domain.ChatChannel,
		UserID:    meta.UserID,
		UserAgent: meta.UserAgent,
	}, nil
}
