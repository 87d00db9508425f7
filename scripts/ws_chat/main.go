// Command ws_chat is a terminal chat client for manual testing. It
// logs in over REST, subscribes to a room over the realtime channel,
// and renders messages through the optimistic-send timeline so its own
// sends appear immediately and reconcile on echo.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/deskchat/deskchat-server/internal/proto"
	"github.com/deskchat/deskchat-server/internal/reconcile"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	room := flag.Int64("room", 0, "room id to join")
	flag.Parse()

	if *email == "" || *password == "" || *room <= 0 {
		return errors.New("email, password and room are required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	token, err := login(ctx, *server, *email, *password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	wsURL := strings.Replace(*server, "http", "ws", 1) + "/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	subPayload, err := json.Marshal(proto.SubscribeData{RoomID: *room})
	if err != nil {
		return fmt.Errorf("marshal subscribe: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeSubscribe, Data: subPayload}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	fmt.Printf("Connected to %s as %s in room %d\n", *server, *email, *room)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	timeline := reconcile.NewTimeline()

	go func() {
		defer cancel()
		readLoop(ctx, conn, timeline)
	}()

	writeLoop(ctx, conn, *room, timeline)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func login(ctx context.Context, server, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var auth struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", err
	}
	return auth.Token, nil
}

func readLoop(ctx context.Context, conn *websocket.Conn, timeline *reconcile.Timeline) {
	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if outbound.Type == proto.OutboundTypeError && outbound.Error != nil {
			log.Printf("server error: %s: %s", outbound.Error.Code, outbound.Error.Msg)
			continue
		}

		if outbound.Event != proto.EventNameMessage {
			fmt.Printf("event=%s data=%v\n", outbound.Event, outbound.Data)
			continue
		}

		raw, err := json.Marshal(outbound.Data)
		if err != nil {
			log.Printf("marshal outbound data: %v", err)
			continue
		}
		var evt proto.EventMessage
		if err := json.Unmarshal(raw, &evt); err != nil {
			log.Printf("unmarshal message: %v", err)
			continue
		}

		timeline.Apply(reconcile.Message{
			ID:         evt.ID,
			RoomID:     evt.RoomID,
			SenderID:   evt.SenderID,
			SenderName: evt.SenderName,
			Body:       evt.Body,
			TempID:     evt.TempID,
			CreatedAt:  evt.CreatedAt,
		})

		if evt.TempID != "" && timeline.PendingCount() == 0 {
			fmt.Printf("[room %d] %s: %s (delivered)\n", evt.RoomID, evt.SenderName, evt.Body)
			continue
		}
		fmt.Printf("[room %d] %s: %s\n", evt.RoomID, evt.SenderName, evt.Body)
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, room int64, timeline *reconcile.Timeline) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			tempID := uuid.NewString()
			timeline.AddPending(tempID, reconcile.Message{
				RoomID: room,
				Body:   text,
			})

			payload, err := json.Marshal(proto.SendData{RoomID: room, Body: text, TempID: tempID})
			if err != nil {
				log.Printf("marshal send: %v", err)
				return
			}
			if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeSend, Data: payload}); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
