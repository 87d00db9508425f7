package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/chat"
	"github.com/deskchat/deskchat-server/internal/gateway"
	"github.com/deskchat/deskchat-server/internal/proto"
)

// WSHandler upgrades authenticated connections and bridges them to the
// realtime gateway.
type WSHandler struct {
	gate        chat.IdentityGate
	gateway     *gateway.Gateway
	pipeline    *chat.SendPipeline
	eventBuffer int
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(gate chat.IdentityGate, gw *gateway.Gateway, pipeline *chat.SendPipeline, eventBuffer int, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		gate:        gate,
		gateway:     gw,
		pipeline:    pipeline,
		eventBuffer: eventBuffer,
		log:         logger,
	}
}

// Handle authenticates the handshake and runs the connection until it
// closes. A bad credential rejects the upgrade outright; the client
// must reconnect with a fresh one.
func (h *WSHandler) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = bearerToken(c.GetHeader("Authorization"))
	}

	ident, err := h.gate.Authenticate(token)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws handshake rejected")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := gateway.NewClient(uuid.NewString(), ident, h.eventBuffer)
	h.gateway.Register(client)
	defer h.gateway.Unregister(client)

	h.log.Info().
		Str("conn_id", client.ID).
		Int64("user_id", ident.UserID).
		Msg("ws connected")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)

	h.log.Info().
		Str("conn_id", client.ID).
		Int64("user_id", ident.UserID).
		Msg("ws disconnected")
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *gateway.Client) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if protoErr := h.dispatch(ctx, client, inbound); protoErr != nil {
			if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); writeErr != nil {
				return writeErr
			}
		}
	}
}

// dispatch handles one inbound frame. Malformed frames get a protocol
// error back; domain failures (non-member subscribe, empty send) stay
// silent per the fire-and-forget channel contract.
func (h *WSHandler) dispatch(ctx context.Context, client *gateway.Client, inbound proto.Inbound) *proto.Error {
	switch inbound.Type {
	case proto.InboundTypeSubscribe:
		var data proto.SubscribeData
		if err := json.Unmarshal(inbound.Data, &data); err != nil || data.RoomID <= 0 {
			return &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "roomId is required"}
		}
		h.gateway.Subscribe(ctx, client, data.RoomID)
		return nil

	case proto.InboundTypeUnsubscribe:
		var data proto.SubscribeData
		if err := json.Unmarshal(inbound.Data, &data); err != nil || data.RoomID <= 0 {
			return &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "roomId is required"}
		}
		h.gateway.Unsubscribe(client, data.RoomID)
		return nil

	case proto.InboundTypeSend:
		var data proto.SendData
		if err := json.Unmarshal(inbound.Data, &data); err != nil || data.RoomID <= 0 {
			return &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "roomId is required"}
		}
		if _, err := h.pipeline.Send(ctx, chat.SendRequest{
			RoomID:     data.RoomID,
			SenderID:   client.Identity.UserID,
			Body:       data.Body,
			Attachment: fromProtoAttachment(data.Attachment),
			TempID:     data.TempID,
		}); err != nil {
			h.log.Debug().Err(err).
				Str("conn_id", client.ID).
				Int64("room_id", data.RoomID).
				Msg("realtime send dropped")
		}
		return nil

	default:
		return &proto.Error{Code: proto.ErrCodeInvalidFrame, Msg: "unknown message type"}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *gateway.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
