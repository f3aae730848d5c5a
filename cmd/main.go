package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KBoateng4/Mentorlink-client/client"
	"github.com/KBoateng4/Mentorlink-client/cmd/api"
	"github.com/KBoateng4/Mentorlink-client/cmd/utils"
	"github.com/KBoateng4/Mentorlink-client/service/notifications"
	"github.com/KBoateng4/Mentorlink-client/service/ws"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on the environment")
	}
	utils.InitializeLogger()
	logger := utils.GetLogger()
	defer logger.Sync()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "devserver":
			runDevServer(logger)
			return
		default:
			log.Fatalf("Unknown command: %s", os.Args[1])
		}
	}

	runWatcher(logger)
}

// runDevServer starts the in-memory scheduling API so the watcher (or a
// frontend) has something local to talk to.
func runDevServer(logger *zap.Logger) {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret"
	}

	server := api.NewApiServer(":"+port, secret, logger)
	if err := server.Run(); err != nil {
		logger.Fatal("dev server error", zap.Error(err))
	}
}

// runWatcher signs in with the configured session token, loads the
// notification list and keeps it live over the push channel, falling back to
// polling if the channel degrades.
func runWatcher(logger *zap.Logger) {
	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	wsURL := os.Getenv("WS_URL")
	if wsURL == "" {
		wsURL = "ws://localhost:8080/ws"
	}

	session, err := utils.NewSession(os.Getenv("SESSION_TOKEN"))
	if err != nil {
		logger.Fatal("SESSION_TOKEN is missing or malformed", zap.Error(err))
	}

	ctx := context.Background()
	apiClient := client.New(apiURL, session, logger)
	sync := notification.NewSync(apiClient, logger)

	if err := sync.Refresh(ctx); err != nil {
		logger.Fatal("initial notification load failed", zap.Error(err))
	}

	conn, err := ws.Dial(ctx, wsURL, session.Token, ws.DefaultPolicy(), sync.Apply, func() {
		if err := sync.Refresh(context.Background()); err != nil {
			logger.Warn("post-reconnect resync failed", zap.Error(err))
		}
	}, logger)
	if err != nil {
		logger.Fatal("push channel dial failed", zap.Error(err))
	}
	defer conn.Close()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	logger.Info("watching notifications", zap.Uint("user_id", session.UserID))
	for {
		select {
		case <-ticker.C:
			if conn.Degraded() {
				if err := sync.Refresh(ctx); err != nil {
					logger.Warn("poll refresh failed", zap.Error(err))
					continue
				}
			}
			unread, chat := sync.Counts()
			logger.Info("unread counters",
				zap.Int("unread", unread),
				zap.Int("unread_chat", chat),
				zap.Bool("degraded", conn.Degraded()))
		case <-quit:
			logger.Info("shutting down")
			return
		}
	}
}
