package main

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/PintaAI/pjkr-winter/internal/attendance"
	"github.com/PintaAI/pjkr-winter/internal/config"
	"github.com/PintaAI/pjkr-winter/internal/scanner"
	"github.com/PintaAI/pjkr-winter/internal/store"
)

// Scanner reads decoded QR payloads, one per line, from a keyboard-wedge
// scanner or a piped camera decoder and submits them as attendance scans.
func main() {
	cfg := config.Load()
	log.SetOutput(os.Stderr)
	if cfg.Production() {
		log.SetFormatter(&log.JSONFormatter{})
	}

	if cfg.Scanner.BusID == "" {
		log.Fatal("SCANNER_BUS_ID is required")
	}
	dir, err := attendance.ParseDirection(cfg.Scanner.Direction)
	if err != nil {
		log.Fatalf("SCANNER_DIRECTION: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var debouncer scanner.Debouncer
	switch cfg.Scanner.Debounce {
	case "redis":
		rdb := store.NewRedis(cfg.RedisAddr)
		defer rdb.Close()
		if !rdb.Healthy(ctx) {
			log.Fatalf("redis not reachable at %s", cfg.RedisAddr)
		}
		debouncer = scanner.NewRedisDebouncer(rdb.Client, cfg.Scanner.DeviceID, cfg.Scanner.DebounceWindow)
	default:
		debouncer = scanner.NewMemoryDebouncer(cfg.Scanner.DebounceWindow)
	}

	s := scanner.New(
		debouncer,
		scanner.NewHTTPSubmitter(cfg.Scanner.APIURL, cfg.Scanner.BusID, string(dir)),
		scanner.NewConsolePresenter(os.Stdout, cfg.Scanner.Display),
	)

	frames := make(chan string)
	go func() {
		defer close(frames)
		in := bufio.NewScanner(os.Stdin)
		for in.Scan() {
			select {
			case frames <- in.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := in.Err(); err != nil {
			log.WithError(err).Error("read stdin")
		}
	}()

	log.WithFields(log.Fields{
		"device":    cfg.Scanner.DeviceID,
		"bus_id":    cfg.Scanner.BusID,
		"direction": dir,
		"api":       cfg.Scanner.APIURL,
	}).Info("scanner ready")

	if err := s.Run(ctx, frames); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("scanner stopped: %v", err)
	}
}
