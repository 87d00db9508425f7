package chat

import (
	"fmt"
	"strings"

	"github.com/deskchat/deskchat-server/internal/store"
)

// Content is the validated payload of a message: text, an attachment,
// or both. Constructing it through NewContent is the single validation
// point for every send path, request or realtime.
type Content struct {
	body       string
	attachment *store.Attachment
}

// NewContent trims the body and rejects payloads that carry neither
// text nor an attachment. The attachment is treated as already
// uploaded; only its reference fields are checked here.
func NewContent(body string, attachment *store.Attachment) (Content, error) {
	body = strings.TrimSpace(body)

	if attachment != nil && strings.TrimSpace(attachment.URL) == "" {
		attachment = nil
	}

	if body == "" && attachment == nil {
		return Content{}, fmt.Errorf("%w: message body or attachment is required", ErrInvalidArgument)
	}

	if attachment != nil {
		att := *attachment
		att.URL = strings.TrimSpace(att.URL)
		if att.Size < 0 {
			return Content{}, fmt.Errorf("%w: negative attachment size", ErrInvalidArgument)
		}
		attachment = &att
	}

	return Content{body: body, attachment: attachment}, nil
}

// Body returns the trimmed message text, possibly empty.
func (c Content) Body() string { return c.body }

// Attachment returns the attachment reference, nil for text-only content.
func (c Content) Attachment() *store.Attachment { return c.attachment }

// HasText reports whether the content carries a non-empty body.
func (c Content) HasText() bool { return c.body != "" }

// HasAttachment reports whether the content carries an attachment.
func (c Content) HasAttachment() bool { return c.attachment != nil }
