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

	"github.com/nomanqadri34/vcx-mart-sub002/auth"
	"github.com/nomanqadri34/vcx-mart-sub002/config"
	"github.com/nomanqadri34/vcx-mart-sub002/database"
	"github.com/nomanqadri34/vcx-mart-sub002/notify"
	"github.com/nomanqadri34/vcx-mart-sub002/payment"
	"github.com/nomanqadri34/vcx-mart-sub002/routes"
	"github.com/nomanqadri34/vcx-mart-sub002/session"
	"github.com/nomanqadri34/vcx-mart-sub002/validation"
)

const shutdownGrace = 10 * time.Second

func main() {
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[config] %v", err)
	}

	ctx := context.Background()
	store, err := database.Connect(ctx, cfg.MongoURI, cfg.DBName)
	if err != nil {
		log.Fatalf("❌ MongoDB: %v", err)
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		log.Fatalf("❌ MongoDB indexes: %v", err)
	}

	validation.Register()

	if cfg.PaymentKeyID == "" {
		log.Println("[payment] gateway keys not set, online payments disabled")
	}
	r := routes.New(routes.Deps{
		Config:    cfg,
		Store:     store,
		Tokens:    auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry),
		Blacklist: database.NewTokenBlacklist(store.BlacklistTokens),
		Sessions:  session.NewMongoStore(store.Sessions, cfg.SessionTTL),
		Gateway:   payment.NewGateway(cfg.PaymentKeyID, cfg.PaymentKeySecret, cfg.PaymentWebhookSecret, cfg.Currency),
		Notifier: notify.New(notify.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		}),
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Printf("🚀 VCX Mart API listening on :%s (%s)", cfg.Port, cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	if err := store.Close(shutdownCtx); err != nil {
		log.Printf("mongo disconnect: %v", err)
	}
}
