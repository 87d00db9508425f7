package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskchat/deskchat-server/internal/store"
)

func TestNewContentTrimsBody(t *testing.T) {
	content, err := NewContent("  hello  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", content.Body())
	assert.True(t, content.HasText())
	assert.False(t, content.HasAttachment())
}

func TestNewContentRejectsEmpty(t *testing.T) {
	_, err := NewContent("", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewContent("   \n\t  ", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNewContentAttachmentOnly(t *testing.T) {
	content, err := NewContent("", &store.Attachment{
		URL:  "http://files.local/a.png",
		Name: "a.png",
		Mime: "image/png",
		Size: 42,
	})
	require.NoError(t, err)
	assert.False(t, content.HasText())
	require.True(t, content.HasAttachment())
	assert.Equal(t, "http://files.local/a.png", content.Attachment().URL)
}

func TestNewContentDropsEmptyAttachment(t *testing.T) {
	// An attachment without a URL is no attachment at all.
	_, err := NewContent("", &store.Attachment{URL: "   "})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	content, err := NewContent("hi", &store.Attachment{URL: ""})
	require.NoError(t, err)
	assert.False(t, content.HasAttachment())
}

func TestNewContentRejectsNegativeSize(t *testing.T) {
	_, err := NewContent("", &store.Attachment{URL: "http://files.local/a", Size: -1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDirectKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, DirectKey(7, 3), DirectKey(3, 7))
	assert.Equal(t, "dm:3:7", DirectKey(7, 3))
}
