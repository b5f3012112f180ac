package uid

import (
	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// New returns a sortable, globally unique id.
func New() string {
	return ksuid.New().String()
}

// NewConnectionID returns an id for a websocket connection.
func NewConnectionID() string {
	return New()
}

// EventIDs hands out time-ordered ids for published presence events.
type EventIDs struct {
	node *snowflake.Node
}

// NewEventIDs builds a generator for nodeID (0-1023). An invalid node id
// falls back to node 1.
func NewEventIDs(nodeID int64) *EventIDs {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		node, _ = snowflake.NewNode(1)
	}
	return &EventIDs{node: node}
}

func (g *EventIDs) Next() string {
	return g.node.Generate().String()
}
