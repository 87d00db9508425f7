package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/store"
)

// DirectPolicy decides whether the actor may open a direct room with
// the counterpart. The check is supplied by the caller layer; the room
// service only evaluates it before creation.
type DirectPolicy func(actor Identity, counterpart *store.User) error

// DirectKey builds the deduplication key for a direct room. The pair
// is unordered, so the smaller id always comes first.
func DirectKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("dm:%d:%d", a, b)
}

// RoomSummary is the composed view of a room for one member.
type RoomSummary struct {
	Room        *store.Room
	Members     []*store.Member
	LastMessage *store.Message
	UnreadCount int
}

// Rooms owns room and membership management plus read-position
// bookkeeping. All message history access is gated on membership here.
type Rooms struct {
	store        store.Store
	historyLimit int
	historyMax   int
	log          *zerolog.Logger
}

// History page bounds used when the configuration does not override them.
const (
	DefaultHistoryLimit = 30
	MaxHistoryLimit     = 100
)

// NewRooms builds the room service. Non-positive limits fall back to
// the package defaults.
func NewRooms(st store.Store, historyLimit, historyMax int, logger *zerolog.Logger) *Rooms {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if historyMax <= 0 {
		historyMax = MaxHistoryLimit
	}
	return &Rooms{
		store:        st,
		historyLimit: historyLimit,
		historyMax:   historyMax,
		log:          logger,
	}
}

// FindOrCreateDirectRoom returns the direct room between the actor and
// otherID, creating it together with both memberships when it does not
// exist yet. The returned bool reports whether a new room was created.
func (r *Rooms) FindOrCreateDirectRoom(ctx context.Context, actor Identity, otherID int64, policy DirectPolicy) (*RoomSummary, bool, error) {
	if otherID == actor.UserID {
		return nil, false, fmt.Errorf("%w: cannot open a direct room with yourself", ErrInvalidArgument)
	}

	other, err := r.store.GetUserByID(ctx, otherID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: user %d", ErrNotFound, otherID)
		}
		return nil, false, fmt.Errorf("lookup counterpart: %w", err)
	}

	if policy != nil {
		if err := policy(actor, other); err != nil {
			return nil, false, err
		}
	}

	key := DirectKey(actor.UserID, otherID)

	if room, err := r.store.GetRoomByDirectKey(ctx, key); err == nil {
		summary, err := r.Summary(ctx, room.ID, actor.UserID)
		return summary, false, err
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup direct room: %w", err)
	}

	room, err := r.store.CreateDirectRoom(ctx, key, actor.UserID, otherID)
	if err != nil {
		return nil, false, fmt.Errorf("create direct room: %w", err)
	}

	r.log.Info().
		Int64("room_id", room.ID).
		Int64("user_id", actor.UserID).
		Int64("other_id", otherID).
		Msg("direct room created")

	summary, err := r.Summary(ctx, room.ID, actor.UserID)
	return summary, true, err
}

// CreateGroupRoom creates a multi-party room. The member set is the
// deduplicated union of the creator and memberIDs and must have at
// least two users. The creator gets the admin membership role.
// Privilege restriction on the caller is enforced by the caller layer.
func (r *Rooms) CreateGroupRoom(ctx context.Context, actor Identity, name string, memberIDs []int64) (*RoomSummary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}

	seen := map[int64]struct{}{actor.UserID: {}}
	members := []int64{actor.UserID}
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	if len(members) < 2 {
		return nil, fmt.Errorf("%w: at least 2 members required", ErrInvalidArgument)
	}

	room, err := r.store.CreateGroupRoom(ctx, name, actor.UserID, members)
	if err != nil {
		return nil, fmt.Errorf("create group room: %w", err)
	}

	r.log.Info().
		Int64("room_id", room.ID).
		Int64("user_id", actor.UserID).
		Int("member_count", len(members)).
		Str("name", name).
		Msg("group room created")

	return r.Summary(ctx, room.ID, actor.UserID)
}

// IsMember reports whether userID belongs to roomID.
func (r *Rooms) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	return r.store.IsMember(ctx, roomID, userID)
}

// Summary composes room, members, last message, and unread count for
// one member. Non-members get ErrNotFound; the room's existence is not
// revealed to them.
func (r *Rooms) Summary(ctx context.Context, roomID, userID int64) (*RoomSummary, error) {
	member, err := r.store.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, fmt.Errorf("%w: room %d", ErrNotFound, roomID)
	}

	room, err := r.store.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: room %d", ErrNotFound, roomID)
		}
		return nil, fmt.Errorf("get room: %w", err)
	}

	members, err := r.store.ListMembers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	lastPage, err := r.store.ListMessages(ctx, roomID, 1, nil)
	if err != nil {
		return nil, fmt.Errorf("get last message: %w", err)
	}
	var last *store.Message
	if len(lastPage) > 0 {
		last = lastPage[len(lastPage)-1]
	}

	unread, err := r.store.UnreadCount(ctx, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}

	return &RoomSummary{
		Room:        room,
		Members:     members,
		LastMessage: last,
		UnreadCount: unread,
	}, nil
}

// ListRoomsForUser returns summaries of the user's rooms ordered by
// room id descending, newest room first. The ordering follows the
// original system and is deliberately not last-activity based.
func (r *Rooms) ListRoomsForUser(ctx context.Context, userID int64) ([]*RoomSummary, error) {
	rooms, err := r.store.ListRoomsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	summaries := make([]*RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summary, err := r.Summary(ctx, room.ID, userID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// History returns a page of messages in ascending id order. limit is
// clamped to [1, max] with the configured default for zero; beforeID
// pages backward with a strict less-than.
func (r *Rooms) History(ctx context.Context, roomID, userID int64, limit int, beforeID *int64) ([]*store.Message, error) {
	member, err := r.store.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, fmt.Errorf("%w: not a member of room %d", ErrForbidden, roomID)
	}

	if limit == 0 {
		limit = r.historyLimit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > r.historyMax {
		limit = r.historyMax
	}

	return r.store.ListMessages(ctx, roomID, limit, beforeID)
}

// MarkRead moves the user's read position to the room's newest message
// and returns the resulting id. The stored position never decreases.
func (r *Rooms) MarkRead(ctx context.Context, roomID, userID int64) (int64, error) {
	member, err := r.store.IsMember(ctx, roomID, userID)
	if err != nil {
		return 0, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return 0, fmt.Errorf("%w: not a member of room %d", ErrForbidden, roomID)
	}

	lastID, err := r.store.LastMessageID(ctx, roomID)
	if err != nil {
		return 0, fmt.Errorf("get last message id: %w", err)
	}
	if err := r.store.MarkRead(ctx, roomID, userID, lastID); err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return lastID, nil
}
