package websocket

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/iamasit07/chat-presence/internal/domain"
	"go.uber.org/zap"
)

const (
	writeWait = 10 * time.Second

	// sendBuffer is how many room messages may queue for one socket before
	// further messages to it are dropped.
	sendBuffer = 64
)

type client struct {
	id       string
	conn     *websocket.Conn
	metadata domain.ConnectionMetadata

	// writeMu serializes writes; conn.WriteJSON is not safe for concurrent use.
	writeMu  sync.Mutex
	lastSeen atomic.Int64

	// send queues room messages in order for writePump.
	send      chan ServerMessage
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn, metadata domain.ConnectionMetadata) *client {
	return &client{
		id:       id,
		conn:     conn,
		metadata: metadata,
		send:     make(chan ServerMessage, sendBuffer),
		done:     make(chan struct{}),
	}
}

func (c *client) write(msg ServerMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *client) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// enqueue hands msg to the writer without blocking. It reports false when
// the client is gone or its queue is full.
func (c *client) enqueue(msg ServerMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writePump delivers queued room messages one at a time until the client
// is removed, so a socket sees them in the order they were broadcast.
func (c *client) writePump(log *zap.Logger) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				log.Debug("room message not delivered",
					zap.String("connection_id", c.id), zap.String("room", msg.Room), zap.Error(err))
			}
		}
	}
}

// ConnectionManager tracks the open websocket connections of this instance
// and which rooms each one listens to. It is the presence engine's view of
// the transport and the local room broadcaster.
type ConnectionManager struct {
	mu      sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[string]struct{} // room -> connection ids

	aliveWindow time.Duration
	now         func() time.Time
	log         *zap.Logger
}

func NewConnectionManager(aliveWindow time.Duration, log *zap.Logger) *ConnectionManager {
	if aliveWindow <= 0 {
		aliveWindow = 90 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ConnectionManager{
		clients:     make(map[string]*client),
		rooms:       make(map[string]map[string]struct{}),
		aliveWindow: aliveWindow,
		now:         time.Now,
		log:         log,
	}
}

func (cm *ConnectionManager) add(c *client) {
	c.lastSeen.Store(cm.now().UnixNano())
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.clients[c.id] = c
}

// remove forgets the connection and drops it from every room.
func (cm *ConnectionManager) remove(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if c, ok := cm.clients[id]; ok {
		c.close()
	}
	delete(cm.clients, id)
	for room, members := range cm.rooms {
		delete(members, id)
		if len(members) == 0 {
			delete(cm.rooms, room)
		}
	}
}

func (cm *ConnectionManager) markSeen(id string) {
	cm.mu.RLock()
	c, ok := cm.clients[id]
	cm.mu.RUnlock()
	if ok {
		c.lastSeen.Store(cm.now().UnixNano())
	}
}

func (cm *ConnectionManager) joinRoom(id, room string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, ok := cm.clients[id]; !ok {
		return
	}
	members, ok := cm.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		cm.rooms[room] = members
	}
	members[id] = struct{}{}
}

func (cm *ConnectionManager) leaveRoom(id, room string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if members, ok := cm.rooms[room]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(cm.rooms, room)
		}
	}
}

// ListAliveConnections snapshots every open connection. A connection is
// alive while its last pong or message is within the alive window.
func (cm *ConnectionManager) ListAliveConnections(ctx context.Context) ([]domain.Connection, error) {
	cutoff := cm.now().Add(-cm.aliveWindow).UnixNano()

	cm.mu.RLock()
	conns := make([]domain.Connection, 0, len(cm.clients))
	for _, c := range cm.clients {
		conns = append(conns, domain.Connection{
			ID:       c.id,
			Alive:    c.lastSeen.Load() >= cutoff,
			Metadata: c.metadata,
		})
	}
	cm.mu.RUnlock()

	sort.Slice(conns, func(i, j int) bool { return conns[i].ID < conns[j].ID })
	return conns, nil
}

func (cm *ConnectionManager) ResolveChannelAndUser(meta domain.ConnectionMetadata) (domain.ChannelIdentity, error) {
	return ResolveChannel(meta)
}

// Leave tells the room's local listeners that user went offline.
func (cm *ConnectionManager) Leave(ctx context.Context, room string, user domain.UserView) error {
	cm.broadcast(room, ServerMessage{Type: TypeUserLeft, Room: room, User: &user})
	return nil
}

// MarkInactive tells the room's local listeners that users went idle.
func (cm *ConnectionManager) MarkInactive(ctx context.Context, room string, users []domain.UserView) error {
	cm.broadcast(room, ServerMessage{Type: TypeUsersInactive, Room: room, Users: users})
	return nil
}

// broadcast queues msg for every member of room. Each socket has its own
// writer, so one slow socket does not hold up the rest.
func (cm *ConnectionManager) broadcast(room string, msg ServerMessage) {
	cm.mu.RLock()
	targets := make([]*client, 0, len(cm.rooms[room]))
	for id := range cm.rooms[room] {
		if c, ok := cm.clients[id]; ok {
			targets = append(targets, c)
		}
	}
	cm.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(msg) {
			cm.log.Warn("room message dropped",
				zap.String("connection_id", c.id), zap.String("room", room), zap.String("type", msg.Type))
		}
	}
}

// Rooms lists the rooms this instance has listeners in, with the distinct
// users listening.
func (cm *ConnectionManager) Rooms() []domain.Room {
	cm.mu.RLock()
	rooms := make([]domain.Room, 0, len(cm.rooms))
	for name, members := range cm.rooms {
		seen := make(map[string]bool, len(members))
		room := domain.Room{Name: name, Members: []string{}}
		for id := range members {
			c, ok := cm.clients[id]
			if !ok || c.metadata.UserID == "" || seen[c.metadata.UserID] {
				continue
			}
			seen[c.metadata.UserID] = true
			room.Members = append(room.Members, c.metadata.UserID)
		}
		sort.Strings(room.Members)
		rooms = append(rooms, room)
	}
	cm.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })
	return rooms
}

// Count returns the number of open connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}
