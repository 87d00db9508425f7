package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/deskchat/deskchat-server/internal/store"
)

// schema is applied on open. The original deployment bootstraps its
// relations the same way instead of shipping separate migrations.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'user',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	kind       TEXT NOT NULL,
	name       TEXT,
	direct_key TEXT UNIQUE,
	created_by INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (created_by) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS room_members (
	room_id     INTEGER NOT NULL,
	user_id     INTEGER NOT NULL,
	member_role TEXT NOT NULL DEFAULT 'member',
	joined_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (room_id, user_id),
	FOREIGN KEY (room_id) REFERENCES rooms(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS messages (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id         INTEGER NOT NULL,
	sender_id       INTEGER NOT NULL,
	body            TEXT NOT NULL DEFAULT '',
	attachment_url  TEXT,
	attachment_name TEXT,
	attachment_mime TEXT,
	attachment_size INTEGER,
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (room_id) REFERENCES rooms(id),
	FOREIGN KEY (sender_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS room_reads (
	room_id              INTEGER NOT NULL,
	user_id              INTEGER NOT NULL,
	last_read_message_id INTEGER NOT NULL DEFAULT 0,
	updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (room_id, user_id),
	FOREIGN KEY (room_id) REFERENCES rooms(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, id DESC);
CREATE INDEX IF NOT EXISTS idx_room_members_user ON room_members(user_id);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; this also makes the
	// message id sequence the single serialization point for appends.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new account with an already-hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, email, passwordHash, role string) (*store.User, error) {
	query := `
		INSERT INTO users (name, email, password_hash, role)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, name, email, passwordHash, role)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, name, email, password_hash, role, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `
		SELECT id, name, email, password_hash, role, created_at
		FROM users
		WHERE email = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// SearchChatPartners lists users the caller may open a direct room with.
func (s *SQLiteStore) SearchChatPartners(ctx context.Context, callerID int64, callerRole, q string) ([]*store.User, error) {
	query := `
		SELECT id, name, email, password_hash, role, created_at
		FROM users
		WHERE id <> ?
	`
	args := []interface{}{callerID}

	if callerRole != store.RoleAdmin {
		query += ` AND role = 'admin'`
	}
	if q != "" {
		query += ` AND (LOWER(name) LIKE ? OR LOWER(email) LIKE ?)`
		pattern := "%" + strings.ToLower(q) + "%"
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY name LIMIT 50`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chat partners: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		var user store.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &user)
	}

	return users, rows.Err()
}

// ==== RoomStore implementation ====

// CreateDirectRoom inserts a direct room plus both memberships in one
// transaction. On a direct_key conflict the row that won the race is
// returned instead, so concurrent creation for the same pair converges
// on a single room.
func (s *SQLiteStore) CreateDirectRoom(ctx context.Context, directKey string, creatorID, otherID int64) (*store.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO rooms (kind, name, direct_key, created_by)
		VALUES ('direct', NULL, ?, ?)
	`, directKey, creatorID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			// Another caller won the race for this pair. Release the
			// transaction (it holds the single connection) and return
			// the room that already exists.
			_ = tx.Rollback()
			return s.GetRoomByDirectKey(ctx, directKey)
		}
		return nil, fmt.Errorf("insert room: %w", err)
	}

	roomID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	memberQuery := `
		INSERT INTO room_members (room_id, user_id, member_role)
		VALUES (?, ?, 'member')
	`
	if _, err := tx.ExecContext(ctx, memberQuery, roomID, creatorID); err != nil {
		return nil, fmt.Errorf("add creator membership: %w", err)
	}
	if _, err := tx.ExecContext(ctx, memberQuery, roomID, otherID); err != nil {
		return nil, fmt.Errorf("add counterpart membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetRoomByID(ctx, roomID)
}

// GetRoomByDirectKey retrieves a direct room by its direct_key.
func (s *SQLiteStore) GetRoomByDirectKey(ctx context.Context, directKey string) (*store.Room, error) {
	query := `
		SELECT id, kind, COALESCE(name, ''), direct_key, created_by, created_at
		FROM rooms
		WHERE direct_key = ?
	`
	return s.scanRoom(s.db.QueryRowContext(ctx, query, directKey))
}

// CreateGroupRoom inserts a group room and all memberships in one
// transaction. memberIDs must already include the creator.
func (s *SQLiteStore) CreateGroupRoom(ctx context.Context, name string, creatorID int64, memberIDs []int64) (*store.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO rooms (kind, name, direct_key, created_by)
		VALUES ('group', ?, NULL, ?)
	`, name, creatorID)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	roomID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	memberQuery := `
		INSERT OR IGNORE INTO room_members (room_id, user_id, member_role)
		VALUES (?, ?, ?)
	`
	for _, userID := range memberIDs {
		memberRole := store.MemberRoleMember
		if userID == creatorID {
			memberRole = store.MemberRoleAdmin
		}
		if _, err := tx.ExecContext(ctx, memberQuery, roomID, userID, memberRole); err != nil {
			return nil, fmt.Errorf("add membership for user %d: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetRoomByID(ctx, roomID)
}

// GetRoomByID retrieves a room by ID.
func (s *SQLiteStore) GetRoomByID(ctx context.Context, id int64) (*store.Room, error) {
	query := `
		SELECT id, kind, COALESCE(name, ''), direct_key, created_by, created_at
		FROM rooms
		WHERE id = ?
	`
	return s.scanRoom(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLiteStore) scanRoom(row *sql.Row) (*store.Room, error) {
	var room store.Room
	var directKey sql.NullString
	err := row.Scan(
		&room.ID,
		&room.Kind,
		&room.Name,
		&directKey,
		&room.CreatedBy,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	if directKey.Valid {
		room.DirectKey = &directKey.String
	}
	return &room, nil
}

// ListRoomsForUser returns the caller's rooms, newest room first.
func (s *SQLiteStore) ListRoomsForUser(ctx context.Context, userID int64) ([]*store.Room, error) {
	query := `
		SELECT r.id, r.kind, COALESCE(r.name, ''), r.direct_key, r.created_by, r.created_at
		FROM rooms r
		JOIN room_members m ON m.room_id = r.id
		WHERE m.user_id = ?
		ORDER BY r.id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		var room store.Room
		var directKey sql.NullString
		if err := rows.Scan(&room.ID, &room.Kind, &room.Name, &directKey, &room.CreatedBy, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		if directKey.Valid {
			room.DirectKey = &directKey.String
		}
		rooms = append(rooms, &room)
	}

	return rooms, rows.Err()
}

// IsMember checks if user is a member of the room.
func (s *SQLiteStore) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	query := `
		SELECT 1 FROM room_members
		WHERE room_id = ? AND user_id = ?
	`
	var exists int
	err := s.db.QueryRowContext(ctx, query, roomID, userID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query membership: %w", err)
	}

	return true, nil
}

// ListMembers lists all members of a room with their display fields.
func (s *SQLiteStore) ListMembers(ctx context.Context, roomID int64) ([]*store.Member, error) {
	query := `
		SELECT u.id, u.name, u.email, u.role, m.member_role, m.joined_at
		FROM room_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.room_id = ?
		ORDER BY u.name
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []*store.Member
	for rows.Next() {
		var member store.Member
		if err := rows.Scan(&member.UserID, &member.Name, &member.Email, &member.Role, &member.MemberRole, &member.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, &member)
	}

	return members, rows.Err()
}

// ==== MessageStore implementation ====

// AppendMessage persists a message and fills in its ID and CreatedAt.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	createdAt := time.Now().UTC()

	var url, name, mime interface{}
	var size interface{}
	if msg.Attachment != nil {
		url, name, mime, size = msg.Attachment.URL, msg.Attachment.Name, msg.Attachment.Mime, msg.Attachment.Size
	}

	query := `
		INSERT INTO messages (room_id, sender_id, body, attachment_url, attachment_name, attachment_mime, attachment_size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.RoomID, msg.SenderID, msg.Body, url, name, mime, size, createdAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = createdAt
	return nil
}

// ListMessages retrieves messages from a room with backward pagination.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID int64, limit int, beforeID *int64) ([]*store.Message, error) {
	query := `
		SELECT m.id, m.room_id, m.sender_id, COALESCE(u.name, ''), COALESCE(u.role, ''),
		       m.body, m.attachment_url, m.attachment_name, m.attachment_mime, m.attachment_size,
		       m.created_at
		FROM messages m
		LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.room_id = ?
	`
	args := []interface{}{roomID}

	if beforeID != nil {
		query += ` AND m.id < ?`
		args = append(args, *beforeID)
	}
	query += ` ORDER BY m.id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		var url, name, mime sql.NullString
		var size sql.NullInt64
		if err := rows.Scan(
			&msg.ID, &msg.RoomID, &msg.SenderID, &msg.SenderName, &msg.SenderRole,
			&msg.Body, &url, &name, &mime, &size, &msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if url.Valid && url.String != "" {
			msg.Attachment = &store.Attachment{
				URL:  url.String,
				Name: name.String,
				Mime: mime.String,
				Size: size.Int64,
			}
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get ascending order for display.
	for i := 0; i < len(messages)/2; i++ {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}

// LastMessageID returns the newest message id of a room, 0 if empty.
func (s *SQLiteStore) LastMessageID(ctx context.Context, roomID int64) (int64, error) {
	query := `
		SELECT COALESCE(MAX(id), 0) FROM messages WHERE room_id = ?
	`
	var id int64
	if err := s.db.QueryRowContext(ctx, query, roomID).Scan(&id); err != nil {
		return 0, fmt.Errorf("query last message id: %w", err)
	}
	return id, nil
}

// ==== ReadStore implementation ====

// MarkRead upserts the read position with max(existing, messageID).
func (s *SQLiteStore) MarkRead(ctx context.Context, roomID, userID, messageID int64) error {
	query := `
		INSERT INTO room_reads (room_id, user_id, last_read_message_id)
		VALUES (?, ?, ?)
		ON CONFLICT (room_id, user_id) DO UPDATE SET
			last_read_message_id = MAX(last_read_message_id, excluded.last_read_message_id),
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, userID, messageID); err != nil {
		return fmt.Errorf("upsert read position: %w", err)
	}
	return nil
}

// LastRead returns the stored read position, 0 when none exists.
func (s *SQLiteStore) LastRead(ctx context.Context, roomID, userID int64) (int64, error) {
	query := `
		SELECT last_read_message_id FROM room_reads
		WHERE room_id = ? AND user_id = ?
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query, roomID, userID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("query read position: %w", err)
	}
	return id, nil
}

// UnreadCount counts messages above the read position from other senders.
func (s *SQLiteStore) UnreadCount(ctx context.Context, roomID, userID int64) (int, error) {
	lastRead, err := s.LastRead(ctx, roomID, userID)
	if err != nil {
		return 0, err
	}

	query := `
		SELECT COUNT(*) FROM messages
		WHERE room_id = ? AND id > ? AND sender_id <> ?
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, roomID, lastRead, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}
