package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	authhandler "mobile-chat/server/internal/auth/handler"
	authservice "mobile-chat/server/internal/auth/service"
	"mobile-chat/server/internal/config"
	"mobile-chat/server/internal/db"
	"mobile-chat/server/internal/security"
	"mobile-chat/server/internal/server"
	"mobile-chat/server/internal/server/middleware"
	"mobile-chat/server/internal/session"
	sessionrepo "mobile-chat/server/internal/session/repository"
	"mobile-chat/server/internal/telemetry/otel"
	userrepo "mobile-chat/server/internal/user/repository"
	"mobile-chat/server/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure)
	if err != nil {
		logger.Fatal("telemetry", zap.Error(err))
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer conn.Close()

	tokens := security.NewTokenProvider(
		[]byte(cfg.JWTAccessSecret), []byte(cfg.JWTRefreshSecret),
		cfg.JWTIssuer, cfg.JWTAudience,
		cfg.AccessTTL(), cfg.RefreshTTL(),
	)
	hasher := security.NewHasher(cfg.BcryptCost)
	sessions := session.NewStore(sessionrepo.NewPostgresRepository(conn))
	users := userrepo.NewPostgresRepository(conn)
	authSvc := authservice.NewAuthService(users, sessions, hasher, tokens)

	guard := &middleware.Auth{Tokens: tokens}
	wsHandler := ws.NewHandler(&ws.Strategy{Tokens: tokens}, ws.NewHub(), logger)
	router := server.NewRouter(cfg.ServiceName, logger, guard, authhandler.NewAuthHandler(authSvc, logger), wsHandler)

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	go runSessionCleanup(cleanupCtx, sessions, cfg.CleanupInterval(), logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	stopCleanup()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// runSessionCleanup deletes expired sessions on a fixed interval until ctx is
// cancelled.
func runSessionCleanup(ctx context.Context, sessions *session.Store, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.CleanupExpired(ctx)
			if err != nil {
				logger.Warn("session cleanup", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("session cleanup", zap.Int64("deleted", n))
			}
		}
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
