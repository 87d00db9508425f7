package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/blob"
	blobminio "github.com/deskchat/deskchat-server/internal/blob/minio"
	"github.com/deskchat/deskchat-server/internal/chat"
	"github.com/deskchat/deskchat-server/internal/config"
	"github.com/deskchat/deskchat-server/internal/gateway"
	"github.com/deskchat/deskchat-server/internal/identity"
	"github.com/deskchat/deskchat-server/internal/store"
	"github.com/deskchat/deskchat-server/internal/store/sqlite"
	transporthttp "github.com/deskchat/deskchat-server/internal/transport/http"
)

// App wires together the store, services, gateway and transport.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &identity.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	}
	identityService := identity.NewService(st, jwtConfig)

	rooms := chat.NewRooms(st, cfg.HistoryPageSize, cfg.HistoryPageMax, logger)
	gw := gateway.New(st, logger)
	pipeline := chat.NewSendPipeline(st, identityService, gw, logger)

	var blobStore blob.Store
	if cfg.Blob.Endpoint != "" {
		bs, err := blobminio.New(ctx, blobminio.Config{
			Endpoint:  cfg.Blob.Endpoint,
			AccessKey: cfg.Blob.AccessKey,
			SecretKey: cfg.Blob.SecretKey,
			Bucket:    cfg.Blob.Bucket,
			UseSSL:    cfg.Blob.UseSSL,
			PublicURL: cfg.Blob.PublicURL,
		})
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("init blob store: %w", err)
		}
		blobStore = bs
		logger.Info().Str("endpoint", cfg.Blob.Endpoint).Str("bucket", cfg.Blob.Bucket).Msg("blob store initialized")
	} else {
		logger.Info().Msg("blob store not configured, attachment uploads disabled")
	}

	server := transporthttp.NewServer(transporthttp.ServerDeps{
		Identity: identityService,
		Rooms:    rooms,
		Pipeline: pipeline,
		Gateway:  gw,
		Blob:     blobStore,
	}, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	a.log.Info().Str("addr", a.server.Addr).Msg("http server started")

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
