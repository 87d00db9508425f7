package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyReplacesPendingInPlace(t *testing.T) {
	tl := NewTimeline()

	tl.Apply(Message{ID: 1, Body: "earlier"})
	tl.AddPending("tmp-1", Message{Body: "optimistic"})
	require.Equal(t, 1, tl.PendingCount())

	tl.Apply(Message{ID: 2, TempID: "tmp-1", Body: "authoritative"})

	msgs := tl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(2), msgs[1].ID)
	assert.Equal(t, "authoritative", msgs[1].Body)
	assert.Equal(t, 0, tl.PendingCount())
}

func TestApplyDeduplicatesEcho(t *testing.T) {
	tl := NewTimeline()

	tl.AddPending("tmp-1", Message{Body: "optimistic"})

	// Acknowledgment and broadcast echo can arrive in either order;
	// exactly one copy stays visible.
	tl.Resolve("tmp-1", Message{ID: 5, Body: "sent"})
	tl.Apply(Message{ID: 5, TempID: "tmp-1", Body: "sent"})

	msgs := tl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(5), msgs[0].ID)
}

func TestApplyAppendsForeignMessages(t *testing.T) {
	tl := NewTimeline()

	tl.AddPending("tmp-1", Message{Body: "mine"})
	tl.Apply(Message{ID: 3, Body: "theirs"})

	msgs := tl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "mine", msgs[0].Body)
	assert.Equal(t, int64(3), msgs[1].ID)
	assert.Equal(t, 1, tl.PendingCount())
}

func TestApplyKeepsPositionOnResolve(t *testing.T) {
	tl := NewTimeline()

	tl.AddPending("tmp-1", Message{Body: "first"})
	tl.Apply(Message{ID: 10, Body: "second"})
	tl.Apply(Message{ID: 11, TempID: "tmp-1", Body: "first final"})

	// The optimistic entry keeps its original slot even though the
	// authoritative id is higher than its neighbor's.
	msgs := tl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(11), msgs[0].ID)
	assert.Equal(t, int64(10), msgs[1].ID)
}

func TestApplySameMessageTwice(t *testing.T) {
	tl := NewTimeline()

	tl.Apply(Message{ID: 7, Body: "once"})
	tl.Apply(Message{ID: 7, Body: "once"})

	assert.Len(t, tl.Messages(), 1)
}

func TestMessagesReturnsSnapshot(t *testing.T) {
	tl := NewTimeline()
	tl.Apply(Message{ID: 1, Body: "a"})

	snapshot := tl.Messages()
	tl.Apply(Message{ID: 2, Body: "b"})

	assert.Len(t, snapshot, 1)
	assert.Len(t, tl.Messages(), 2)
}
