package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/blob"
	"github.com/deskchat/deskchat-server/internal/chat"
	"github.com/deskchat/deskchat-server/internal/identity"
	"github.com/deskchat/deskchat-server/internal/store"
)

// ChatHandlers provides HTTP handlers for the messaging endpoints.
type ChatHandlers struct {
	rooms     *chat.Rooms
	pipeline  *chat.SendPipeline
	identity  *identity.Service
	blob      blob.Store // nil disables attachment uploads
	maxUpload int64
	log       *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance.
func NewChatHandlers(rooms *chat.Rooms, pipeline *chat.SendPipeline, identityService *identity.Service, blobStore blob.Store, maxUpload int64, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{
		rooms:     rooms,
		pipeline:  pipeline,
		identity:  identityService,
		blob:      blobStore,
		maxUpload: maxUpload,
		log:       logger,
	}
}

// directMessagePolicy restricts who may open a direct room: regular
// users can only start conversations with admins.
func directMessagePolicy(actor chat.Identity, other *store.User) error {
	if actor.Role != store.RoleAdmin && other.Role != store.RoleAdmin {
		return fmt.Errorf("%w: you can only message admins", chat.ErrForbidden)
	}
	return nil
}

// ListChatPartners lists users the caller may open a direct room with.
// GET /api/chat/users?q=
func (h *ChatHandlers) ListChatPartners(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	users, err := h.identity.SearchChatPartners(c.Request.Context(), actor, c.Query("q"))
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", actor.UserID).Msg("failed to search chat partners")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]UserResponse, 0, len(users))
	for _, user := range users {
		response = append(response, UserResponse{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		})
	}
	c.JSON(http.StatusOK, response)
}

// ListRooms returns the caller's room summaries, newest room first.
// GET /api/chat/rooms
func (h *ChatHandlers) ListRooms(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	summaries, err := h.rooms.ListRoomsForUser(c.Request.Context(), actor.UserID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", actor.UserID).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomSummaryResponse, 0, len(summaries))
	for _, summary := range summaries {
		response = append(response, toRoomSummaryResponse(summary))
	}
	c.JSON(http.StatusOK, response)
}

// CreateDirectRoomRequest represents the direct room request body.
type CreateDirectRoomRequest struct {
	UserID int64 `json:"userId" binding:"required"`
}

// CreateDirectRoom finds or creates the direct room with another user.
// POST /api/chat/rooms/direct — 201 when newly created, 200 otherwise.
func (h *ChatHandlers) CreateDirectRoom(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateDirectRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "userId is required"})
		return
	}

	summary, created, err := h.rooms.FindOrCreateDirectRoom(c.Request.Context(), actor, req.UserID, directMessagePolicy)
	if err != nil {
		status := httpStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Int64("user_id", actor.UserID).Int64("other_id", req.UserID).Msg("failed to open direct room")
			c.JSON(status, ErrorResponse{Error: "internal server error"})
			return
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, toRoomSummaryResponse(summary))
}

// CreateGroupRoomRequest represents the group room request body.
type CreateGroupRoomRequest struct {
	Name      string  `json:"name" binding:"required,min=1,max=64"`
	MemberIDs []int64 `json:"memberIds"`
}

// CreateGroupRoom creates a multi-party room. Admin only.
// POST /api/chat/rooms/group
func (h *ChatHandlers) CreateGroupRoom(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	if actor.Role != store.RoleAdmin {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only admins can create group rooms"})
		return
	}

	var req CreateGroupRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	summary, err := h.rooms.CreateGroupRoom(c.Request.Context(), actor, req.Name, req.MemberIDs)
	if err != nil {
		status := httpStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Int64("user_id", actor.UserID).Str("name", req.Name).Msg("failed to create group room")
			c.JSON(status, ErrorResponse{Error: "internal server error"})
			return
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, toRoomSummaryResponse(summary))
}

// ListMessages returns a page of room history in ascending order.
// GET /api/chat/rooms/:roomID/messages?limit=&beforeId=
func (h *ChatHandlers) ListMessages(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	roomID, err := strconv.ParseInt(c.Param("roomID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))

	var beforeID *int64
	if raw := c.Query("beforeId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid beforeId"})
			return
		}
		beforeID = &id
	}

	messages, err := h.rooms.History(c.Request.Context(), roomID, actor.UserID, limit, beforeID)
	if err != nil {
		status := httpStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Int64("room_id", roomID).Int64("user_id", actor.UserID).Msg("failed to list messages")
			c.JSON(status, ErrorResponse{Error: "internal server error"})
			return
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		response = append(response, *toMessageResponse(msg))
	}
	c.JSON(http.StatusOK, response)
}

// SendMessageRequest represents the send request body.
type SendMessageRequest struct {
	Body       string              `json:"body"`
	TempID     string              `json:"tempId"`
	Attachment *AttachmentResponse `json:"attachment"`
}

// SendMessage sends a message over the request path, the fallback when
// no persistent connection is available.
// POST /api/chat/rooms/:roomID/messages
func (h *ChatHandlers) SendMessage(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	roomID, err := strconv.ParseInt(c.Param("roomID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	var attachment *store.Attachment
	if req.Attachment != nil {
		attachment = &store.Attachment{
			URL:  req.Attachment.URL,
			Name: req.Attachment.Name,
			Mime: req.Attachment.Mime,
			Size: req.Attachment.Size,
		}
	}

	msg, err := h.pipeline.Send(c.Request.Context(), chat.SendRequest{
		RoomID:     roomID,
		SenderID:   actor.UserID,
		Body:       req.Body,
		Attachment: attachment,
		TempID:     req.TempID,
	})
	if err != nil {
		status := httpStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Int64("room_id", roomID).Int64("user_id", actor.UserID).Msg("failed to send message")
			c.JSON(status, ErrorResponse{Error: "internal server error"})
			return
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	response := toMessageResponse(msg)
	response.TempID = req.TempID
	c.JSON(http.StatusCreated, response)
}

// MarkReadResponse reports the resulting read position.
type MarkReadResponse struct {
	LastReadMessageID int64 `json:"lastReadMessageId"`
}

// MarkRead moves the caller's read position to the room's newest message.
// POST /api/chat/rooms/:roomID/read
func (h *ChatHandlers) MarkRead(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	roomID, err := strconv.ParseInt(c.Param("roomID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
		return
	}

	lastID, err := h.rooms.MarkRead(c.Request.Context(), roomID, actor.UserID)
	if err != nil {
		status := httpStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Int64("room_id", roomID).Int64("user_id", actor.UserID).Msg("failed to mark room read")
			c.JSON(status, ErrorResponse{Error: "internal server error"})
			return
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, MarkReadResponse{LastReadMessageID: lastID})
}

// UploadAttachment stores an attachment in the blob store ahead of a
// send. The returned reference is what send requests embed.
// POST /api/chat/attachments
func (h *ChatHandlers) UploadAttachment(c *gin.Context) {
	if _, ok := identityFromContext(c); !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	if h.blob == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "attachment storage is not configured"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file is required"})
		return
	}
	defer file.Close()

	if h.maxUpload > 0 && header.Size > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "file too large"})
		return
	}

	mime := header.Header.Get("Content-Type")
	if mime == "" {
		mime = "application/octet-stream"
	}

	object, err := h.blob.Put(c.Request.Context(), header.Filename, mime, header.Size, file)
	if err != nil {
		h.log.Error().Err(err).Str("file", header.Filename).Msg("failed to store attachment")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, AttachmentResponse{
		URL:  object.URL,
		Name: object.Name,
		Mime: object.Mime,
		Size: object.Size,
	})
}
