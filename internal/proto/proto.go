package proto

import "encoding/json"

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeSubscribe   = "subscribe"
	InboundTypeUnsubscribe = "unsubscribe"
	InboundTypeSend        = "send"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNameMessage = "message"
)

// SubscribeData requests room subscription or unsubscription.
type SubscribeData struct {
	RoomID int64 `json:"roomId"`
}

// SendData is a message send over the realtime channel. TempID is the
// client-generated correlation id echoed back in the broadcast so the
// sender can reconcile its optimistic copy.
type SendData struct {
	RoomID     int64           `json:"roomId"`
	Body       string          `json:"body"`
	TempID     string          `json:"tempId,omitempty"`
	Attachment *AttachmentData `json:"attachment,omitempty"`
}

// AttachmentData references an already-uploaded file.
type AttachmentData struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Mime string `json:"mime"`
	Size int64  `json:"size"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage is the enriched message payload broadcast to every
// subscriber of a room. TempID is set only on the echo of a send that
// supplied one.
type EventMessage struct {
	ID         int64           `json:"id"`
	RoomID     int64           `json:"roomId"`
	SenderID   int64           `json:"senderId"`
	SenderName string          `json:"senderName,omitempty"`
	SenderRole string          `json:"senderRole,omitempty"`
	Body       string          `json:"body"`
	Attachment *AttachmentData `json:"attachment,omitempty"`
	CreatedAt  string          `json:"createdAt"`
	TempID     string          `json:"tempId,omitempty"`
}

// Error describes a protocol-level error response. Only malformed
// frames produce one; domain failures on the realtime channel are
// dropped silently.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeInvalidFrame = "invalid_frame"
)
