package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/chat"
	"github.com/deskchat/deskchat-server/internal/config"
	"github.com/deskchat/deskchat-server/internal/gateway"
	"github.com/deskchat/deskchat-server/internal/identity"
	"github.com/deskchat/deskchat-server/internal/store"
	"github.com/deskchat/deskchat-server/internal/store/sqlite"
)

// testEnv wires a full server stack over an in-memory store.
type testEnv struct {
	store    store.Store
	identity *identity.Service
	gateway  *gateway.Gateway
	router   *gin.Engine
	jwtCfg   *identity.JWTConfig
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtCfg := &identity.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
	identityService := identity.NewService(st, jwtCfg)

	disabledLogger := zerolog.Nop()
	rooms := chat.NewRooms(st, 0, 0, &disabledLogger)
	gw := gateway.New(st, &disabledLogger)
	pipeline := chat.NewSendPipeline(st, identityService, gw, &disabledLogger)

	cfg := config.Default()
	cfg.JWTSecret = "test-secret"
	cfg.AuthRatePerMinute = 0 // no throttling in tests

	router := NewRouter(ServerDeps{
		Identity: identityService,
		Rooms:    rooms,
		Pipeline: pipeline,
		Gateway:  gw,
	}, cfg, &disabledLogger)

	return &testEnv{
		store:    st,
		identity: identityService,
		gateway:  gw,
		router:   router,
		jwtCfg:   jwtCfg,
	}
}

// createUser inserts an account with the given role and returns its id
// plus a valid bearer token. Registration over the API only produces
// regular users, so admins are seeded directly.
func (e *testEnv) createUser(t *testing.T, name, role string) (int64, string) {
	t.Helper()

	hash, err := identity.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user, err := e.store.CreateUser(context.Background(), name, name+"@example.com", hash, role)
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}

	token, err := identity.GenerateToken(e.jwtCfg, user.ID, user.Name, user.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return user.ID, token
}

// do performs one request against the router. A nil body sends no
// payload; anything else is marshaled as JSON.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func decodeJSON[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal response %q: %v", resp.Body.String(), err)
	}
	return out
}
