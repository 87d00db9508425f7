package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/deskchat/deskchat-server/internal/chat"
	"github.com/deskchat/deskchat-server/internal/gateway"
	"github.com/deskchat/deskchat-server/internal/proto"
	"github.com/deskchat/deskchat-server/internal/store"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AttachmentResponse references an uploaded file.
type AttachmentResponse struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Mime string `json:"mime"`
	Size int64  `json:"size"`
}

// MessageResponse represents a message in API responses. TempID is set
// only on the acknowledgment of a send that supplied one.
type MessageResponse struct {
	ID         int64               `json:"id"`
	RoomID     int64               `json:"roomId"`
	SenderID   int64               `json:"senderId"`
	SenderName string              `json:"senderName,omitempty"`
	SenderRole string              `json:"senderRole,omitempty"`
	Body       string              `json:"body"`
	Attachment *AttachmentResponse `json:"attachment,omitempty"`
	CreatedAt  string              `json:"createdAt"`
	TempID     string              `json:"tempId,omitempty"`
}

// MemberResponse represents a room member in API responses.
type MemberResponse struct {
	UserID     int64  `json:"userId"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	MemberRole string `json:"memberRole"`
	JoinedAt   string `json:"joinedAt"`
}

// RoomSummaryResponse is the composed room view returned by the API.
type RoomSummaryResponse struct {
	ID          int64            `json:"id"`
	Kind        string           `json:"kind"`
	Name        string           `json:"name,omitempty"`
	CreatedBy   int64            `json:"createdBy"`
	CreatedAt   string           `json:"createdAt"`
	Members     []MemberResponse `json:"members"`
	LastMessage *MessageResponse `json:"lastMessage,omitempty"`
	UnreadCount int              `json:"unreadCount"`
}

// UserResponse represents a chat partner in API responses.
type UserResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toAttachmentResponse(att *store.Attachment) *AttachmentResponse {
	if att == nil {
		return nil
	}
	return &AttachmentResponse{
		URL:  att.URL,
		Name: att.Name,
		Mime: att.Mime,
		Size: att.Size,
	}
}

func toMessageResponse(msg *store.Message) *MessageResponse {
	if msg == nil {
		return nil
	}
	return &MessageResponse{
		ID:         msg.ID,
		RoomID:     msg.RoomID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		SenderRole: msg.SenderRole,
		Body:       msg.Body,
		Attachment: toAttachmentResponse(msg.Attachment),
		CreatedAt:  formatTime(msg.CreatedAt),
	}
}

func toRoomSummaryResponse(summary *chat.RoomSummary) RoomSummaryResponse {
	members := make([]MemberResponse, 0, len(summary.Members))
	for _, m := range summary.Members {
		members = append(members, MemberResponse{
			UserID:     m.UserID,
			Name:       m.Name,
			Email:      m.Email,
			Role:       m.Role,
			MemberRole: m.MemberRole,
			JoinedAt:   formatTime(m.JoinedAt),
		})
	}
	return RoomSummaryResponse{
		ID:          summary.Room.ID,
		Kind:        string(summary.Room.Kind),
		Name:        summary.Room.Name,
		CreatedBy:   summary.Room.CreatedBy,
		CreatedAt:   formatTime(summary.Room.CreatedAt),
		Members:     members,
		LastMessage: toMessageResponse(summary.LastMessage),
		UnreadCount: summary.UnreadCount,
	}
}

func toProtoAttachment(att *store.Attachment) *proto.AttachmentData {
	if att == nil {
		return nil
	}
	return &proto.AttachmentData{
		URL:  att.URL,
		Name: att.Name,
		Mime: att.Mime,
		Size: att.Size,
	}
}

func fromProtoAttachment(att *proto.AttachmentData) *store.Attachment {
	if att == nil {
		return nil
	}
	return &store.Attachment{
		URL:  att.URL,
		Name: att.Name,
		Mime: att.Mime,
		Size: att.Size,
	}
}

// outboundFromEvent maps a gateway delivery onto the wire protocol.
func outboundFromEvent(event gateway.Event) proto.Outbound {
	msg := event.Message
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventNameMessage,
		Data: proto.EventMessage{
			ID:         msg.ID,
			RoomID:     msg.RoomID,
			SenderID:   msg.SenderID,
			SenderName: msg.SenderName,
			SenderRole: msg.SenderRole,
			Body:       msg.Body,
			Attachment: toProtoAttachment(msg.Attachment),
			CreatedAt:  formatTime(msg.CreatedAt),
			TempID:     event.TempID,
		},
	}
}

// httpStatus maps the domain error taxonomy onto HTTP status codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, chat.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, chat.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, chat.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
