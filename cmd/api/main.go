package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/PintaAI/pjkr-winter/internal/attendance"
	"github.com/PintaAI/pjkr-winter/internal/auth"
	"github.com/PintaAI/pjkr-winter/internal/capacity"
	"github.com/PintaAI/pjkr-winter/internal/cloudinary"
	"github.com/PintaAI/pjkr-winter/internal/config"
	"github.com/PintaAI/pjkr-winter/internal/handler"
	"github.com/PintaAI/pjkr-winter/internal/peserta"
	"github.com/PintaAI/pjkr-winter/internal/statustemplate"
	"github.com/PintaAI/pjkr-winter/internal/store"
)

func main() {
	// api hash-password <password> prints a value for PANITIA_PASSWORD_HASH
	if len(os.Args) == 3 && os.Args[1] == "hash-password" {
		hash, err := auth.HashPassword(os.Args[2])
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg := config.Load()

	log.SetOutput(os.Stdout)
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()
	health := map[string]handler.HealthChecker{}

	var st store.Store
	switch cfg.StoreBackend {
	case "memory":
		st = store.NewMemory()
		log.Warn("using in-memory store; data is lost on restart")
	case "postgres":
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		st = store.NewRepository(db.Client)
		health["db"] = db
	default:
		return errors.New("STORE_BACKEND must be postgres or memory")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	health["redis"] = redisClient

	cdn := cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	if cdn.Configured() {
		log.WithField("cloud", cfg.CloudinaryCloudName).Info("cloudinary configured")
	} else {
		log.Warn("cloudinary not configured; payment proof upload disabled")
	}
	if cfg.PanitiaPasswordHash == "" {
		log.Warn("PANITIA_PASSWORD_HASH not set; organizer login disabled")
	}

	tracker := capacity.NewTracker(st)
	h := handler.New(
		attendance.NewService(st),
		statustemplate.NewRegistry(st),
		peserta.NewService(st, tracker, cdn),
		auth.Credentials{Username: cfg.PanitiaUsername, PasswordHash: cfg.PanitiaPasswordHash},
		handler.SessionConfig{Issuer: cfg.JWTIssuer, SigningKey: cfg.JWTSigningKey, TTL: cfg.AccessTTL},
		health,
	)
	r := handler.NewRouter(h, handler.RouterOptions{
		RateLimitPerMin: cfg.RateLimitPerMin,
		AllowOrigins:    cfg.AllowOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.HTTPPort).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server forced shutdown")
	}
	log.Info("server exited")
	return nil
}
