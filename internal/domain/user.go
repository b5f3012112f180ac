package domain

import (
	"fmt"
	"strings"
	"time"
)

type UserStatus int

const (
	StatusOnline   UserStatus = 0
	StatusInactive UserStatus = 1
	StatusOffline  UserStatus = 2
)

func (s UserStatus) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusInactive:
		return "inactive"
	case StatusOffline:
		return "offline"
	}
	return fmt.Sprintf("UserStatus(%d)", int(s))
}

func (s UserStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *UserStatus) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "online":
		*s = StatusOnline
	case "inactive":
		*s = StatusInactive
	case "offline":
		*s = StatusOffline
	default:
		return fmt.Errorf("invalid user status %q", text)
	}
	return nil
}

// User is the persisted chat user as seen by presence tracking.
// The number of connected clients is not stored here; it is always
// counted from the session store.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Status       UserStatus `json:"status"`
	LastActivity time.Time  `json:"last_activity"`
	Rooms        []string   `json:"rooms"`
	Note         string     `json:"note,omitempty"`
	AfkNote      string     `json:"afk_note,omitempty"`
	IsAfk        bool       `json:"is_afk"`
	Flag         string     `json:"flag,omitempty"`
}

// UserView is what room subscribers receive about a user.
type UserView struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Status       UserStatus `json:"status"`
	Note         string     `json:"note,omitempty"`
	AfkNote      string     `json:"afkNote,omitempty"`
	IsAfk        bool       `json:"isAfk"`
	Flag         string     `json:"flag,omitempty"`
	LastActivity time.Time  `json:"lastActivity"`
}

func (u *User) View() UserView {
	return UserView{
		ID:           u.ID,
		Name:         u.Name,
		Status:       u.Status,
		Note:         u.Note,
		AfkNote:      u.AfkNote,
		IsAfk:        u.IsAfk,
		Flag:         u.Flag,
		LastActivity: u.LastActivity,
	}
}
