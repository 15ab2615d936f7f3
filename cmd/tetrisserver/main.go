// Command tetrisserver runs the local game simulator so the bot can be played
// against it without the remote server.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brensch/tetrisbot/logging"
	"github.com/brensch/tetrisbot/sim"
)

func main() {
	defaults := sim.DefaultConfig()

	listen := flag.String("listen", "127.0.0.1:3001", "Listen address")
	apiPath := flag.String("api-path", defaults.APIPath, "API path prefix the session id is appended to")
	width := flag.Int("width", defaults.Width, "Board width")
	height := flag.Int("height", defaults.Height, "Board height")
	gravity := flag.Duration("gravity", defaults.Gravity, "How often pieces fall one row (0 disables)")
	seed := flag.Int64("seed", defaults.Seed, "Piece sequence seed")
	failureRate := flag.Float64("failure-rate", 0, "Fraction of HTTP requests answered with 503")
	logFormat := flag.String("log-format", "text", "text, json or pretty")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger, err := logging.New(os.Stderr, *logFormat, level)
	if err != nil {
		log.Fatalf("Invalid log format: %v", err)
	}
	slog.SetDefault(logger)

	cfg := sim.Config{
		APIPath:     *apiPath,
		Width:       *width,
		Height:      *height,
		Gravity:     *gravity,
		Seed:        *seed,
		FailureRate: *failureRate,
	}
	if cfg.Width < 4 || cfg.Height < 4 {
		log.Fatalf("Board must be at least 4x4, got %dx%d", cfg.Width, cfg.Height)
	}
	server := sim.NewServer(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go server.Run(ctx)

	srv := &http.Server{
		Addr:              *listen,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Tetris simulator listening on http://%s%s{session}", *listen, cfg.APIPath)
	log.Printf("  Board: %dx%d  Gravity: %s  Failure rate: %.2f", cfg.Width, cfg.Height, cfg.Gravity, cfg.FailureRate)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}

	for id, st := range server.Stats() {
		log.Printf("  %s: games=%d pieces=%d lines=%d score=%d", id, st.Games, st.Pieces, st.Lines, st.Score)
	}
}
