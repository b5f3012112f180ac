package websocket

import (
	"errors"
	"testing"

	"github.com/iamasit07/chat-presence/internal/domain"
)

func TestResolveChannel(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		userID  string
		wantErr error
	}{
		{"chat", `[{"name":"chat"}]`, "u1", nil},
		{"case insensitive", `[{"name":"Chat"}]`, "u1", nil},
		{"missing", ``, "u1", domain.ErrMetadataMissing},
		{"empty array", `[]`, "u1", domain.ErrMetadataMissing},
		{"malformed", `{"name":`, "u1", domain.ErrMetadataMalformed},
		{"nameless", `[{}]`, "u1", domain.ErrMetadataMalformed},
		{"two channels", `[{"name":"chat"},{"name":"notifications"}]`, "u1", domain.ErrChannelAmbiguous},
		{"foreign", `[{"name":"notifications"}]`, "u1", domain.ErrForeignChannel},
		{"anonymous", `[{"name":"chat"}]`, "", domain.ErrNoPrincipal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ResolveChannel(domain.ConnectionMetadata{ConnectionData: tt.data, UserID: tt.userID, UserAgent: "ua"})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && (id.Channel != domain.ChatChannel || id.UserID != tt.userID || id.UserAgent != "ua") {
				t.Errorf("identity = %+v", id)
			}
		})
	}
}
