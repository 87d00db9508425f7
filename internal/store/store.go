package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// User represents an account known to the identity provider.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// Roles an account can hold.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// RoomKind distinguishes two-party and multi-party rooms.
type RoomKind string

const (
	RoomKindDirect RoomKind = "direct"
	RoomKindGroup  RoomKind = "group"
)

// Room is a conversation context.
type Room struct {
	ID        int64
	Kind      RoomKind
	Name      string  // empty for direct rooms
	DirectKey *string // "dm:{minUserID}:{maxUserID}" for direct rooms
	CreatedBy int64
	CreatedAt time.Time
}

// Membership roles inside a room.
const (
	MemberRoleMember = "member"
	MemberRoleAdmin  = "admin"
)

// Member is a room membership joined with user display fields.
type Member struct {
	UserID     int64
	Name       string
	Email      string
	Role       string
	MemberRole string
	JoinedAt   time.Time
}

// Attachment describes an uploaded file referenced by a message.
type Attachment struct {
	URL  string
	Name string
	Mime string
	Size int64
}

// Message is an immutable chat message. IDs come from a single
// auto-increment sequence, so they are strictly increasing across the
// whole store and therefore inside every room.
type Message struct {
	ID         int64
	RoomID     int64
	SenderID   int64
	SenderName string // joined from users on read paths
	SenderRole string
	Body       string
	Attachment *Attachment
	CreatedAt  time.Time
}

// ReadPosition tracks the highest message id a user has seen in a room.
type ReadPosition struct {
	RoomID            int64
	UserID            int64
	LastReadMessageID int64
	UpdatedAt         time.Time
}

// UserStore handles account persistence for the identity provider.
type UserStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash, role string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// SearchChatPartners lists users the caller may open a direct room
	// with: everyone except the caller for admins, admins only for
	// regular users. Matches name or email when q is non-empty.
	SearchChatPartners(ctx context.Context, callerID int64, callerRole, q string) ([]*User, error)
}

// RoomStore handles room and membership persistence.
type RoomStore interface {
	// CreateDirectRoom inserts a direct room plus both memberships in
	// one transaction. The unique directKey makes concurrent creation
	// for the same pair converge on a single room: on a key conflict
	// the already-inserted room is returned.
	CreateDirectRoom(ctx context.Context, directKey string, creatorID, otherID int64) (*Room, error)

	GetRoomByDirectKey(ctx context.Context, directKey string) (*Room, error)

	// CreateGroupRoom inserts a group room and all memberships in one
	// transaction. The creator gets the admin membership role.
	CreateGroupRoom(ctx context.Context, name string, creatorID int64, memberIDs []int64) (*Room, error)

	GetRoomByID(ctx context.Context, id int64) (*Room, error)

	// ListRoomsForUser returns the caller's rooms ordered by id
	// descending (newest room first).
	ListRoomsForUser(ctx context.Context, userID int64) ([]*Room, error)

	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
	ListMembers(ctx context.Context, roomID int64) ([]*Member, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// AppendMessage persists msg and fills in its ID and CreatedAt.
	// The database sequence is the single serialization point for
	// concurrent senders.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListMessages returns up to limit messages of a room in ascending
	// id order. When beforeID is non-nil only messages with a strictly
	// smaller id are returned (backward pagination).
	ListMessages(ctx context.Context, roomID int64, limit int, beforeID *int64) ([]*Message, error)

	// LastMessageID returns the newest message id of a room, 0 when
	// the room has no messages.
	LastMessageID(ctx context.Context, roomID int64) (int64, error)
}

// ReadStore handles per-(room, user) read positions.
type ReadStore interface {
	// MarkRead upserts the read position with max(existing, messageID);
	// it never decreases.
	MarkRead(ctx context.Context, roomID, userID, messageID int64) error

	// LastRead returns the stored read position, 0 when none exists.
	LastRead(ctx context.Context, roomID, userID int64) (int64, error)

	// UnreadCount counts messages with id above the user's read
	// position that were sent by somebody else.
	UnreadCount(ctx context.Context, roomID, userID int64) (int, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore
	ReadStore

	Close() error
}
