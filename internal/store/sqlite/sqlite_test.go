package sqlite

import (
	"context"
	"testing"

	"github.com/deskchat/deskchat-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	st, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return st
}

func createTestUser(t *testing.T, st *SQLiteStore, name, role string) *store.User {
	t.Helper()

	user, err := st.CreateUser(context.Background(), name, name+"@example.com", "hash", role)
	if err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	return user
}

func appendTestMessage(t *testing.T, st *SQLiteStore, roomID, senderID int64, body string) *store.Message {
	t.Helper()

	msg := &store.Message{RoomID: roomID, SenderID: senderID, Body: body}
	if err := st.AppendMessage(context.Background(), msg); err != nil {
		t.Fatalf("failed to append message: %v", err)
	}
	return msg
}

func TestCreateDirectRoomConvergesOnConflict(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleUser)
	bob := createTestUser(t, st, "bob", store.RoleAdmin)

	first, err := st.CreateDirectRoom(ctx, "dm:1:2", alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	// Same key again simulates the loser of a concurrent create.
	second, err := st.CreateDirectRoom(ctx, "dm:1:2", bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected both creates to converge on one room, got %d and %d", first.ID, second.ID)
	}

	for _, userID := range []int64{alice.ID, bob.ID} {
		member, err := st.IsMember(ctx, first.ID, userID)
		if err != nil {
			t.Fatalf("membership check failed: %v", err)
		}
		if !member {
			t.Errorf("expected user %d to be a member of room %d", userID, first.ID)
		}
	}
}

func TestMessageIDsAreMonotonic(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleUser)
	bob := createTestUser(t, st, "bob", store.RoleAdmin)
	room, err := st.CreateDirectRoom(ctx, "dm:1:2", alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("create room failed: %v", err)
	}

	var prev int64
	for i := 0; i < 5; i++ {
		msg := appendTestMessage(t, st, room.ID, alice.ID, "hello")
		if msg.ID <= prev {
			t.Fatalf("expected strictly increasing ids, got %d after %d", msg.ID, prev)
		}
		prev = msg.ID
	}

	lastID, err := st.LastMessageID(ctx, room.ID)
	if err != nil {
		t.Fatalf("last message id failed: %v", err)
	}
	if lastID != prev {
		t.Errorf("expected last message id %d, got %d", prev, lastID)
	}
}

func TestLastMessageIDEmptyRoom(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleUser)
	bob := createTestUser(t, st, "bob", store.RoleAdmin)
	room, err := st.CreateDirectRoom(ctx, "dm:1:2", alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("create room failed: %v", err)
	}

	lastID, err := st.LastMessageID(ctx, room.ID)
	if err != nil {
		t.Fatalf("last message id failed: %v", err)
	}
	if lastID != 0 {
		t.Errorf("expected 0 for empty room, got %d", lastID)
	}
}

func TestListMessagesPagination(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleUser)
	bob := createTestUser(t, st, "bob", store.RoleAdmin)
	room, err := st.CreateDirectRoom(ctx, "dm:1:2", alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("create room failed: %v", err)
	}

	var ids []int64
	for i := 0; i < 10; i++ {
		msg := appendTestMessage(t, st, room.ID, alice.ID, "msg")
		ids = append(ids, msg.ID)
	}

	// Latest page, ascending order.
	page, err := st.ListMessages(ctx, room.ID, 3, nil)
	if err != nil {
		t.Fatalf("list messages failed: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(page))
	}
	for i, msg := range page {
		want := ids[len(ids)-3+i]
		if msg.ID != want {
			t.Errorf("position %d: expected id %d, got %d", i, want, msg.ID)
		}
	}

	// Page before the earliest of the previous page.
	before := page[0].ID
	older, err := st.ListMessages(ctx, room.ID, 3, &before)
	if err != nil {
		t.Fatalf("list older messages failed: %v", err)
	}
	if len(older) != 3 {
		t.Fatalf("expected 3 older messages, got %d", len(older))
	}
	for _, msg := range older {
		if msg.ID >= before {
			t.Errorf("expected ids below %d, got %d", before, msg.ID)
		}
	}
	if older[len(older)-1].ID != before-1 {
		t.Errorf("expected contiguous page ending at %d, got %d", before-1, older[len(older)-1].ID)
	}
}

func TestListMessagesIncludesSenderFields(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleUser)
	bob := createTestUser(t, st, "bob", store.RoleAdmin)
	room, err := st.CreateDirectRoom(ctx, "dm:1:2", alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("create room failed: %v", err)
	}

	appendTestMessage(t, st, room.ID, bob.ID, "hello")

	page, err := st.ListMessages(ctx, room.ID, 1, nil)
	if err != nil {
		t.Fatalf("list messages failed: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("expected 1 message, got %d", len(page))
	}
	if page[0].SenderName != "bob" || page[0].SenderRole != store.RoleAdmin {
		t.Errorf("unexpected sender fields: %q %q", page[0].SenderName, page[0].SenderRole)
	}
}

func TestAttachmentRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleUser)
	bob := createTestUser(t, st, "bob", store.RoleAdmin)
	room, err := st.CreateDirectRoom(ctx, "dm:1:2", alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("create room failed: %v", err)
	}

	msg := &store.Message{
		RoomID:   room.ID,
		SenderID: alice.ID,
		Attachment: &store.Attachment{
			URL:  "http://files.local/x.pdf",
			Name: "x.pdf",
			Mime: "application/pdf",
			Size: 1234,
		},
	}
	if err := st.AppendMessage(ctx, msg); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	page, err := st.ListMessages(ctx, room.ID, 1, nil)
	if err != nil {
		t.Fatalf("list messages failed: %v", err)
	}
	if page[0].Attachment == nil {
		t.Fatal("expected attachment to survive")
	}
	if page[0].Attachment.URL != "http://files.local/x.pdf" || page[0].Attachment.Size != 1234 {
		t.Errorf("unexpected attachment: %+v", page[0].Attachment)
	}
}

func TestMarkReadNeverDecreases(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleUser)
	bob := createTestUser(t, st, "bob", store.RoleAdmin)
	room, err := st.CreateDirectRoom(ctx, "dm:1:2", alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("create room failed: %v", err)
	}

	if err := st.MarkRead(ctx, room.ID, alice.ID, 10); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	// A stale writer must not move the position backward.
	if err := st.MarkRead(ctx, room.ID, alice.ID, 4); err != nil {
		t.Fatalf("stale mark read failed: %v", err)
	}

	lastRead, err := st.LastRead(ctx, room.ID, alice.ID)
	if err != nil {
		t.Fatalf("last read failed: %v", err)
	}
	if lastRead != 10 {
		t.Errorf("expected read position 10, got %d", lastRead)
	}

	if err := st.MarkRead(ctx, room.ID, alice.ID, 12); err != nil {
		t.Fatalf("forward mark read failed: %v", err)
	}
	lastRead, err = st.LastRead(ctx, room.ID, alice.ID)
	if err != nil {
		t.Fatalf("last read failed: %v", err)
	}
	if lastRead != 12 {
		t.Errorf("expected read position 12, got %d", lastRead)
	}
}

func TestLastReadDefaultsToZero(t *testing.T) {
	st := newTestStore(t)

	lastRead, err := st.LastRead(context.Background(), 42, 7)
	if err != nil {
		t.Fatalf("last read failed: %v", err)
	}
	if lastRead != 0 {
		t.Errorf("expected 0 for missing read position, got %d", lastRead)
	}
}

func TestUnreadCountExcludesOwnMessages(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleUser)
	bob := createTestUser(t, st, "bob", store.RoleAdmin)
	room, err := st.CreateDirectRoom(ctx, "dm:1:2", alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("create room failed: %v", err)
	}

	appendTestMessage(t, st, room.ID, bob.ID, "one")
	appendTestMessage(t, st, room.ID, bob.ID, "two")
	appendTestMessage(t, st, room.ID, alice.ID, "mine")

	count, err := st.UnreadCount(ctx, room.ID, alice.ID)
	if err != nil {
		t.Fatalf("unread count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 unread for alice, got %d", count)
	}

	// Reading up to bob's second message clears them.
	msgs, err := st.ListMessages(ctx, room.ID, 10, nil)
	if err != nil {
		t.Fatalf("list messages failed: %v", err)
	}
	if err := st.MarkRead(ctx, room.ID, alice.ID, msgs[len(msgs)-1].ID); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}

	count, err = st.UnreadCount(ctx, room.ID, alice.ID)
	if err != nil {
		t.Fatalf("unread count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 unread after mark read, got %d", count)
	}
}

func TestSearchChatPartnersPolicy(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleUser)
	bob := createTestUser(t, st, "bob", store.RoleAdmin)
	createTestUser(t, st, "carol", store.RoleUser)

	// Regular users only see admins.
	users, err := st.SearchChatPartners(ctx, alice.ID, store.RoleUser, "")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(users) != 1 || users[0].ID != bob.ID {
		t.Fatalf("expected only the admin, got %d users", len(users))
	}

	// Admins see everyone but themselves.
	users, err = st.SearchChatPartners(ctx, bob.ID, store.RoleAdmin, "")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users for admin, got %d", len(users))
	}

	// Query filter matches name substrings case-insensitively.
	users, err = st.SearchChatPartners(ctx, bob.ID, store.RoleAdmin, "CAR")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(users) != 1 || users[0].Name != "carol" {
		t.Fatalf("expected carol, got %d users", len(users))
	}
}

func TestListRoomsForUserNewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleAdmin)
	bob := createTestUser(t, st, "bob", store.RoleUser)
	carol := createTestUser(t, st, "carol", store.RoleUser)

	first, err := st.CreateDirectRoom(ctx, "dm:1:2", alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("create room failed: %v", err)
	}
	second, err := st.CreateGroupRoom(ctx, "team", alice.ID, []int64{alice.ID, bob.ID, carol.ID})
	if err != nil {
		t.Fatalf("create group failed: %v", err)
	}

	rooms, err := st.ListRoomsForUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list rooms failed: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
	if rooms[0].ID != second.ID || rooms[1].ID != first.ID {
		t.Errorf("expected newest room first, got %d then %d", rooms[0].ID, rooms[1].ID)
	}
}

func TestGroupRoomMemberRoles(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleAdmin)
	bob := createTestUser(t, st, "bob", store.RoleUser)

	room, err := st.CreateGroupRoom(ctx, "team", alice.ID, []int64{alice.ID, bob.ID})
	if err != nil {
		t.Fatalf("create group failed: %v", err)
	}

	members, err := st.ListMembers(ctx, room.ID)
	if err != nil {
		t.Fatalf("list members failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	for _, m := range members {
		want := store.MemberRoleMember
		if m.UserID == alice.ID {
			want = store.MemberRoleAdmin
		}
		if m.MemberRole != want {
			t.Errorf("member %d: expected role %q, got %q", m.UserID, want, m.MemberRole)
		}
	}
}
