package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"replydesk/internal/config"
	"replydesk/internal/gateway"
	"replydesk/internal/httpx"
	"replydesk/internal/notify"
	"replydesk/internal/reply"
	"replydesk/internal/server"
	"replydesk/internal/store"
	"replydesk/internal/workflow"
)

func Main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on OS environment variables")
	}

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf(
		"Config loaded. Listen=%s DB=%s Tone=%q Language=%s Countdown=%ds ProbeTimeout=%ds ExternalHTTPTimeout=%s SlackAlerts=%t",
		cfg.ListenAddr, cfg.DBPath, cfg.ReplyTone, cfg.ReplyLanguage,
		cfg.CountdownSeconds, cfg.ProbeTimeoutSeconds, appliedHTTPTimeout, cfg.SlackConfigured(),
	)

	db, err := store.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()
	st := store.New(db)

	gw := gateway.NewClient(cfg, httpx.Client())
	notifier := notify.New(cfg)
	enricher := &reply.Enricher{Gateway: gw, Store: st}

	sessions := workflow.NewManager(gw, st, notifier, workflow.SenderIdentity{
		UserID:    cfg.SendUserID,
		Email:     cfg.SendUserEmail,
		MailboxID: cfg.SendUserMailboxID,
	})
	sessions.CountdownTicks = cfg.CountdownSeconds

	StartCollectScheduler(cfg, gw, st, notifier)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(st, gw, enricher, sessions).Router(),
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("Shutting down...")
		sessions.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("HTTP shutdown error: %v", err)
		}
	}()

	log.Printf("Starting reply triage service on %s", cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("HTTP server error: %v", err)
	}
}
