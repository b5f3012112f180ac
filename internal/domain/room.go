package domain

type Room struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// RoomGroup holds the users affected by one transition in a single room
// during one reconciliation tick.
type RoomGroup struct {
	Room  string
	Users []UserView
}
