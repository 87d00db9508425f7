package gateway

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/store"
)

// Gateway maintains the room→subscriber mapping for the realtime
// channel and fans persisted messages out to all live subscribers of a
// room. It is the only shared mutable structure in the process; every
// mutation of the registry goes through its mutex so that concurrent
// subscribe/unsubscribe on the same room cannot lose updates.
type Gateway struct {
	mu    sync.RWMutex
	rooms map[int64]map[*Client]struct{}
	subs  map[*Client]map[int64]struct{}

	store store.Store
	log   *zerolog.Logger
}

// New builds an empty gateway over the given store.
func New(st store.Store, logger *zerolog.Logger) *Gateway {
	return &Gateway{
		rooms: make(map[int64]map[*Client]struct{}),
		subs:  make(map[*Client]map[int64]struct{}),
		store: st,
		log:   logger,
	}
}

// Register makes the connection known to the gateway.
func (g *Gateway) Register(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.subs[c]; !ok {
		g.subs[c] = make(map[int64]struct{})
	}
}

// Unregister removes the connection from every room it subscribed to.
// Called on connection teardown; after it returns no broadcast will
// attempt delivery to this client.
func (g *Gateway) Unregister(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for roomID := range g.subs[c] {
		delete(g.rooms[roomID], c)
		if len(g.rooms[roomID]) == 0 {
			delete(g.rooms, roomID)
		}
	}
	delete(g.subs, c)
}

// Subscribe adds the connection to a room's subscriber set after
// verifying membership, and marks the subscriber caught up with the
// room's current last message. Failures are deliberately silent so
// that room existence is not leaked to non-members; they are only
// logged.
func (g *Gateway) Subscribe(ctx context.Context, c *Client, roomID int64) {
	member, err := g.store.IsMember(ctx, roomID, c.Identity.UserID)
	if err != nil {
		g.log.Warn().Err(err).
			Int64("room_id", roomID).
			Int64("user_id", c.Identity.UserID).
			Str("conn_id", c.ID).
			Msg("subscribe membership check failed")
		return
	}
	if !member {
		g.log.Debug().
			Int64("room_id", roomID).
			Int64("user_id", c.Identity.UserID).
			Str("conn_id", c.ID).
			Msg("subscribe ignored for non-member")
		return
	}

	g.mu.Lock()
	if _, ok := g.subs[c]; !ok {
		// Connection already unregistered; a racing teardown must not
		// resurrect it in the room set.
		g.mu.Unlock()
		return
	}
	if _, ok := g.rooms[roomID]; !ok {
		g.rooms[roomID] = make(map[*Client]struct{})
	}
	g.rooms[roomID][c] = struct{}{}
	g.subs[c][roomID] = struct{}{}
	g.mu.Unlock()

	// Joining implies caught up.
	lastID, err := g.store.LastMessageID(ctx, roomID)
	if err == nil {
		err = g.store.MarkRead(ctx, roomID, c.Identity.UserID, lastID)
	}
	if err != nil {
		g.log.Warn().Err(err).
			Int64("room_id", roomID).
			Int64("user_id", c.Identity.UserID).
			Msg("failed to mark room read on subscribe")
	}

	g.log.Debug().
		Int64("room_id", roomID).
		Int64("user_id", c.Identity.UserID).
		Str("conn_id", c.ID).
		Msg("subscribed")
}

// Unsubscribe removes the connection from a room's subscriber set.
// Idempotent.
func (g *Gateway) Unsubscribe(c *Client, roomID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.rooms[roomID], c)
	if len(g.rooms[roomID]) == 0 {
		delete(g.rooms, roomID)
	}
	delete(g.subs[c], roomID)
}

// BroadcastMessage delivers a persisted message to every connection
// currently subscribed to its room, including the sender's own
// connection so it can reconcile an optimistic copy via tempID.
// Delivery to each connection is independent: a full buffer means the
// event is dropped for that connection only, never blocking the rest.
func (g *Gateway) BroadcastMessage(msg *store.Message, tempID string) {
	event := Event{Message: msg, TempID: tempID}

	g.mu.RLock()
	targets := make([]*Client, 0, len(g.rooms[msg.RoomID]))
	for c := range g.rooms[msg.RoomID] {
		targets = append(targets, c)
	}
	g.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.Events <- event:
		default:
			g.log.Warn().
				Str("conn_id", c.ID).
				Int64("room_id", msg.RoomID).
				Int64("message_id", msg.ID).
				Msg("dropping event for slow subscriber")
		}
	}
}

// SubscriberCount reports how many connections are subscribed to a room.
func (g *Gateway) SubscriberCount(roomID int64) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms[roomID])
}
