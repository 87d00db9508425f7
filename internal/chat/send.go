package chat

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/store"
)

// Broadcaster receives persisted messages for realtime fan-out.
// Delivery is best-effort: a failing or absent broadcaster never rolls
// back a persisted message.
type Broadcaster interface {
	BroadcastMessage(msg *store.Message, tempID string)
}

// SendRequest carries one send attempt through the pipeline. TempID is
// the client's optional correlation id for optimistic-send
// reconciliation and is echoed verbatim in the broadcast.
type SendRequest struct {
	RoomID     int64
	SenderID   int64
	Body       string
	Attachment *store.Attachment
	TempID     string
}

// SendPipeline is the single orchestration for creating a message,
// regardless of whether the request arrived over the request API or
// the realtime channel: validate, authorize, persist, advance the
// sender's read position, enrich, fan out.
type SendPipeline struct {
	store       store.Store
	gate        IdentityGate
	broadcaster Broadcaster
	log         *zerolog.Logger
}

// NewSendPipeline builds a pipeline. broadcaster may be nil, in which
// case fan-out is skipped (messages are still persisted and visible on
// the next history fetch).
func NewSendPipeline(st store.Store, gate IdentityGate, broadcaster Broadcaster, logger *zerolog.Logger) *SendPipeline {
	return &SendPipeline{
		store:       st,
		gate:        gate,
		broadcaster: broadcaster,
		log:         logger,
	}
}

// Send runs one attempt through the pipeline and returns the persisted,
// enriched message. Failures before persistence surface the specific
// domain error; failures after persistence (read-position bookkeeping,
// sender lookup, fan-out) are logged and do not fail the send.
func (p *SendPipeline) Send(ctx context.Context, req SendRequest) (*store.Message, error) {
	content, err := NewContent(req.Body, req.Attachment)
	if err != nil {
		return nil, err
	}

	member, err := p.store.IsMember(ctx, req.RoomID, req.SenderID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, fmt.Errorf("%w: not a member of room %d", ErrForbidden, req.RoomID)
	}

	msg := &store.Message{
		RoomID:     req.RoomID,
		SenderID:   req.SenderID,
		Body:       content.Body(),
		Attachment: content.Attachment(),
	}
	if err := p.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	// The sender has seen their own message; without this the send
	// would inflate the sender's unread count.
	if err := p.store.MarkRead(ctx, req.RoomID, req.SenderID, msg.ID); err != nil {
		p.log.Warn().Err(err).
			Int64("room_id", req.RoomID).
			Int64("user_id", req.SenderID).
			Int64("message_id", msg.ID).
			Msg("failed to advance sender read position")
	}

	if sender, err := p.gate.Lookup(ctx, req.SenderID); err == nil {
		msg.SenderName = sender.Name
		msg.SenderRole = sender.Role
	} else {
		p.log.Warn().Err(err).
			Int64("user_id", req.SenderID).
			Msg("failed to resolve sender identity for fan-out")
	}

	if p.broadcaster != nil {
		p.broadcaster.BroadcastMessage(msg, req.TempID)
	}

	p.log.Debug().
		Int64("room_id", msg.RoomID).
		Int64("message_id", msg.ID).
		Int64("user_id", msg.SenderID).
		Msg("message sent")

	return msg, nil
}
