package chat

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskchat/deskchat-server/internal/store"
	"github.com/deskchat/deskchat-server/internal/store/sqlite"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return st
}

func newTestRooms(t *testing.T, st store.Store) *Rooms {
	t.Helper()

	logger := zerolog.Nop()
	return NewRooms(st, 0, 0, &logger)
}

func createTestUser(t *testing.T, st store.Store, name, role string) Identity {
	t.Helper()

	user, err := st.CreateUser(context.Background(), name, name+"@example.com", "hash", role)
	require.NoError(t, err)

	return Identity{UserID: user.ID, Name: user.Name, Role: user.Role}
}

func TestFindOrCreateDirectRoom(t *testing.T) {
	st := newTestStore(t)
	rooms := newTestRooms(t, st)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleUser)
	bob := createTestUser(t, st, "bob", store.RoleAdmin)

	summary, created, err := rooms.FindOrCreateDirectRoom(ctx, alice, bob.UserID, nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, store.RoomKindDirect, summary.Room.Kind)
	assert.Len(t, summary.Members, 2)

	// Opening from the other side returns the same room.
	again, created, err := rooms.FindOrCreateDirectRoom(ctx, bob, alice.UserID, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, summary.Room.ID, again.Room.ID)
}

func TestFindOrCreateDirectRoomRejectsSelf(t *testing.T) {
	st := newTestStore(t)
	rooms := newTestRooms(t, st)

	alice := createTestUser(t, st, "alice", store.RoleUser)

	_, _, err := rooms.FindOrCreateDirectRoom(context.Background(), alice, alice.UserID, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestFindOrCreateDirectRoomUnknownUser(t *testing.T) {
	st := newTestStore(t)
	rooms := newTestRooms(t, st)

	alice := createTestUser(t, st, "alice", store.RoleUser)

	_, _, err := rooms.FindOrCreateDirectRoom(context.Background(), alice, 9999, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindOrCreateDirectRoomPolicyDenied(t *testing.T) {
	st := newTestStore(t)
	rooms := newTestRooms(t, st)

	alice := createTestUser(t, st, "alice", store.RoleUser)
	carol := createTestUser(t, st, "carol", store.RoleUser)

	deny := func(actor Identity, counterpart *store.User) error {
		return fmt.Errorf("%w: peers may not message each other", ErrForbidden)
	}

	_, _, err := rooms.FindOrCreateDirectRoom(context.Background(), alice, carol.UserID, deny)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateGroupRoomDeduplicatesMembers(t *testing.T) {
	st := newTestStore(t)
	rooms := newTestRooms(t, st)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleAdmin)
	bob := createTestUser(t, st, "bob", store.RoleUser)

	// The creator appears both implicitly and in the member list.
	summary, err := rooms.CreateGroupRoom(ctx, alice, "  team  ", []int64{alice.UserID, bob.UserID, bob.UserID})
	require.NoError(t, err)
	assert.Equal(t, "team", summary.Room.Name)
	assert.Len(t, summary.Members, 2)

	for _, m := range summary.Members {
		if m.UserID == alice.UserID {
			assert.Equal(t, store.MemberRoleAdmin, m.MemberRole)
		} else {
			assert.Equal(t, store.MemberRoleMember, m.MemberRole)
		}
	}
}

func TestCreateGroupRoomValidation(t *testing.T) {
	st := newTestStore(t)
	rooms := newTestRooms(t, st)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleAdmin)

	_, err := rooms.CreateGroupRoom(ctx, alice, "   ", []int64{42})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// Creator alone is not a group.
	_, err = rooms.CreateGroupRoom(ctx, alice, "solo", nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSummaryHidesRoomFromNonMembers(t *testing.T) {
	st := newTestStore(t)
	rooms := newTestRooms(t, st)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleUser)
	bob := createTestUser(t, st, "bob", store.RoleAdmin)
	carol := createTestUser(t, st, "carol", store.RoleUser)

	summary, _, err := rooms.FindOrCreateDirectRoom(ctx, alice, bob.UserID, nil)
	require.NoError(t, err)

	_, err = rooms.Summary(ctx, summary.Room.ID, carol.UserID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistoryRequiresMembership(t *testing.T) {
	st := newTestStore(t)
	rooms := newTestRooms(t, st)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleUser)
	bob := createTestUser(t, st, "bob", store.RoleAdmin)
	carol := createTestUser(t, st, "carol", store.RoleUser)

	summary, _, err := rooms.FindOrCreateDirectRoom(ctx, alice, bob.UserID, nil)
	require.NoError(t, err)

	_, err = rooms.History(ctx, summary.Room.ID, carol.UserID, 0, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestHistoryClampsLimit(t *testing.T) {
	st := newTestStore(t)
	logger := zerolog.Nop()
	rooms := NewRooms(st, 5, 10, &logger)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleUser)
	bob := createTestUser(t, st, "bob", store.RoleAdmin)

	summary, _, err := rooms.FindOrCreateDirectRoom(ctx, alice, bob.UserID, nil)
	require.NoError(t, err)
	roomID := summary.Room.ID

	for i := 0; i < 20; i++ {
		_, err := chatSend(ctx, st, roomID, alice.UserID, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	// Zero limit falls back to the configured default.
	page, err := rooms.History(ctx, roomID, alice.UserID, 0, nil)
	require.NoError(t, err)
	assert.Len(t, page, 5)

	// Oversized limit is clamped to the configured max.
	page, err = rooms.History(ctx, roomID, alice.UserID, 1000, nil)
	require.NoError(t, err)
	assert.Len(t, page, 10)

	// Negative limit behaves like the smallest page.
	page, err = rooms.History(ctx, roomID, alice.UserID, -3, nil)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestMarkReadClearsUnread(t *testing.T) {
	st := newTestStore(t)
	rooms := newTestRooms(t, st)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleUser)
	bob := createTestUser(t, st, "bob", store.RoleAdmin)

	summary, _, err := rooms.FindOrCreateDirectRoom(ctx, alice, bob.UserID, nil)
	require.NoError(t, err)
	roomID := summary.Room.ID

	for i := 0; i < 3; i++ {
		_, err := chatSend(ctx, st, roomID, bob.UserID, "hello")
		require.NoError(t, err)
	}

	summary, err = rooms.Summary(ctx, roomID, alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.UnreadCount)

	lastID, err := rooms.MarkRead(ctx, roomID, alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, summary.LastMessage.ID, lastID)

	summary, err = rooms.Summary(ctx, roomID, alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.UnreadCount)

	// Marking read twice is harmless.
	again, err := rooms.MarkRead(ctx, roomID, alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, lastID, again)
}

func TestMarkReadRequiresMembership(t *testing.T) {
	st := newTestStore(t)
	rooms := newTestRooms(t, st)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleUser)
	bob := createTestUser(t, st, "bob", store.RoleAdmin)
	carol := createTestUser(t, st, "carol", store.RoleUser)

	summary, _, err := rooms.FindOrCreateDirectRoom(ctx, alice, bob.UserID, nil)
	require.NoError(t, err)

	_, err = rooms.MarkRead(ctx, summary.Room.ID, carol.UserID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListRoomsForUserNewestFirst(t *testing.T) {
	st := newTestStore(t)
	rooms := newTestRooms(t, st)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice", store.RoleAdmin)
	bob := createTestUser(t, st, "bob", store.RoleUser)
	carol := createTestUser(t, st, "carol", store.RoleUser)

	first, _, err := rooms.FindOrCreateDirectRoom(ctx, alice, bob.UserID, nil)
	require.NoError(t, err)
	second, err := rooms.CreateGroupRoom(ctx, alice, "team", []int64{bob.UserID, carol.UserID})
	require.NoError(t, err)

	list, err := rooms.ListRoomsForUser(ctx, alice.UserID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.Room.ID, list[0].Room.ID)
	assert.Equal(t, first.Room.ID, list[1].Room.ID)
}

// chatSend appends a message directly through the store, bypassing the
// pipeline, for tests that only care about persisted history.
func chatSend(ctx context.Context, st store.Store, roomID, senderID int64, body string) (*store.Message, error) {
	msg := &store.Message{RoomID: roomID, SenderID: senderID, Body: body}
	if err := st.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
