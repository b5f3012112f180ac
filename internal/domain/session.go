package domain

import "time"

// ClientSession links one live transport connection to the user that owns it.
type ClientSession struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	LastActivity       time.Time `json:"last_activity"`
	LastClientActivity time.Time `json:"last_client_activity"`
	UserAgent          string    `json:"user_agent"`
}
