package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/tetrisbot/client"
	"github.com/brensch/tetrisbot/logging"
	"github.com/brensch/tetrisbot/session"
	"github.com/brensch/tetrisbot/store"
	"github.com/brensch/tetrisbot/strategy"
)

func main() {
	clientDefaults := client.DefaultConfig()
	sessionDefaults := session.DefaultConfig("")
	strategyDefaults := strategy.DefaultConfig()

	server := flag.String("server", getEnvOrDefault("TETRIS_SERVER", clientDefaults.Host), "Game server host")
	port := flag.Int("port", getEnvIntOrDefault("TETRIS_PORT", clientDefaults.Port), "Game server port")
	protocol := flag.String("protocol", getEnvOrDefault("TETRIS_PROTOCOL", clientDefaults.Protocol), "http or https")
	apiPath := flag.String("api-path", getEnvOrDefault("TETRIS_API_PATH", clientDefaults.APIPath), "API path prefix the session id is appended to")
	transport := flag.String("transport", getEnvOrDefault("TETRIS_TRANSPORT", "http"), "http (polling) or ws (websocket)")
	sessions := flag.String("sessions", getEnvOrDefault("TETRIS_SESSIONS", "my-bot-session"), "Comma-separated session ids; one loop per id")

	width := flag.Int("width", getEnvIntOrDefault("BOARD_WIDTH", sessionDefaults.Width), "Board width")
	height := flag.Int("height", getEnvIntOrDefault("BOARD_HEIGHT", sessionDefaults.Height), "Board height")
	poll := flag.Duration("poll", getEnvDurationOrDefault("POLL_INTERVAL", sessionDefaults.PollInterval), "Delay between healthy cycles")
	timeout := flag.Duration("timeout", getEnvDurationOrDefault("REQUEST_TIMEOUT", sessionDefaults.RequestTimeout), "Timeout for each server call")
	failureThreshold := flag.Int("failure-threshold", getEnvIntOrDefault("FAILURE_THRESHOLD", sessionDefaults.FailureThreshold), "Consecutive transport failures before entering ERROR")
	backoffMax := flag.Duration("backoff-max", getEnvDurationOrDefault("BACKOFF_MAX", sessionDefaults.BackoffMax), "Backoff ceiling after failures")
	restart := flag.Bool("restart", getEnvBoolOrDefault("RESTART_ON_GAME_OVER", sessionDefaults.RestartOnGameOver), "Send RESTART when a game ends")
	maxRestarts := flag.Int("max-restarts", getEnvIntOrDefault("MAX_RESTARTS", sessionDefaults.MaxRestarts), "Restart limit per session (0 = unlimited)")
	restartOnStart := flag.Bool("restart-on-start", getEnvBoolOrDefault("RESTART_ON_START", sessionDefaults.RestartOnStart), "Send RESTART before the first cycle")
	seed := flag.Int64("seed", getEnvInt64OrDefault("SEED", 0), "Rotation seed (0 = time based); session i uses seed+i")

	holeTolerance := flag.Int("hole-tolerance", getEnvIntOrDefault("HOLE_TOLERANCE", strategyDefaults.HoleTolerance), "Largest height gap hole avoidance steps into")
	heightMargin := flag.Float64("height-margin", getEnvFloatOrDefault("HEIGHT_MARGIN", strategyDefaults.HeightMargin), "Height above the mean that triggers balancing")
	rotationOdds := flag.Int("rotation-odds", getEnvIntOrDefault("ROTATION_ODDS", strategyDefaults.RotationOdds), "Rotate with probability 1/N (0 disables)")

	recordDir := flag.String("record-dir", getEnvOrDefault("RECORD_DIR", ""), "Directory for decision parquet files (empty disables recording)")
	recordFlush := flag.Int("record-flush", getEnvIntOrDefault("RECORD_FLUSH", store.DefaultConfig().FlushRows), "Rows per decision file")

	logFormat := flag.String("log-format", getEnvOrDefault("LOG_FORMAT", "text"), "text, json or pretty")
	logLevel := flag.String("log-level", getEnvOrDefault("LOG_LEVEL", "info"), "debug, info, warn or error")
	logFile := flag.String("log-file", getEnvOrDefault("LOG_FILE", "tetrisbot.log"), "Log destination while the dashboard is shown")
	tui := flag.Bool("tui", getEnvBoolOrDefault("TUI", false), "Show a live dashboard instead of periodic stats lines")

	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}

	// The dashboard owns the terminal, so logs go to a file.
	var logOut io.Writer = os.Stderr
	if *tui {
		f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		logOut = f
		log.SetOutput(f)
	}
	logger, err := logging.New(logOut, *logFormat, level)
	if err != nil {
		log.Fatalf("Invalid log format: %v", err)
	}
	slog.SetDefault(logger)

	clientCfg := clientDefaults
	clientCfg.Host = *server
	clientCfg.Port = *port
	clientCfg.Protocol = *protocol
	clientCfg.APIPath = *apiPath
	clientCfg.Timeout = *timeout
	if err := clientCfg.Validate(); err != nil {
		log.Fatalf("Invalid server config: %v", err)
	}

	var gameClient session.GameClient
	switch *transport {
	case "http":
		gameClient = client.NewHTTPClient(clientCfg)
	case "ws":
		wsClient := client.NewWSClient(clientCfg)
		defer wsClient.Close()
		gameClient = wsClient
	default:
		log.Fatalf("Unknown transport %q (want http or ws)", *transport)
	}

	ids := splitSessions(*sessions)
	if len(ids) == 0 {
		log.Fatalf("At least one session id is required")
	}

	var recorder *store.Recorder
	if *recordDir != "" {
		recorder, err = store.NewRecorder(store.Config{Dir: *recordDir, FlushRows: *recordFlush})
		if err != nil {
			log.Fatalf("Failed to create recorder: %v", err)
		}
	}

	log.Printf("Starting Tetris bot")
	log.Printf("  Server: %s{session}", clientCfg.BaseURL(""))
	log.Printf("  Transport: %s", *transport)
	log.Printf("  Sessions: %s", strings.Join(ids, ", "))
	log.Printf("  Board: %dx%d", *width, *height)
	log.Printf("  Poll: %s  Timeout: %s  Backoff Max: %s", *poll, *timeout, *backoffMax)
	log.Printf("  Restart On Game Over: %v (max %d)", *restart, *maxRestarts)
	if recorder != nil {
		log.Printf("  Recording to: %s (%d rows per file)", *recordDir, *recordFlush)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	loops := make([]*session.Session, 0, len(ids))
	for i, id := range ids {
		cfg := session.DefaultConfig(id)
		cfg.Width = *width
		cfg.Height = *height
		cfg.PollInterval = *poll
		cfg.RequestTimeout = *timeout
		cfg.FailureThreshold = *failureThreshold
		cfg.BackoffMax = *backoffMax
		cfg.RestartOnGameOver = *restart
		cfg.MaxRestarts = *maxRestarts
		cfg.RestartOnStart = *restartOnStart
		if *seed != 0 {
			cfg.Seed = *seed + int64(i)
		}
		cfg.Strategy.HoleTolerance = *holeTolerance
		cfg.Strategy.HeightMargin = *heightMargin
		cfg.Strategy.RotationOdds = *rotationOdds

		opts := []session.Option{session.WithLogger(logger)}
		if recorder != nil {
			opts = append(opts, session.WithRecorder(recorder))
		}
		loops = append(loops, session.New(cfg, gameClient, opts...))
	}

	var wg sync.WaitGroup
	for _, s := range loops {
		wg.Add(1)
		go func(s *session.Session) {
			defer wg.Done()
			if err := s.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("Session stopped unexpectedly: %v", err)
			}
		}(s)
	}

	if *tui {
		p := tea.NewProgram(newDashboard(loops, *transport, clientCfg.BaseURL("")), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && ctx.Err() == nil {
			log.Printf("Dashboard error: %v", err)
		}
		cancel()
	} else {
		logStats(ctx, loops, 10*time.Second)
	}

	log.Printf("Shutdown requested; waiting for sessions to finish their current cycle...")
	wg.Wait()

	if recorder != nil {
		if err := recorder.Close(); err != nil {
			log.Printf("Final recorder flush failed: %v", err)
		}
		log.Printf("Decision files written: %d", len(recorder.Files()))
	}
	for _, s := range loops {
		st := s.Stats()
		log.Printf("  %s: cycles=%d commands=%d rejections=%d transport_failures=%d restarts=%d state=%s",
			st.SessionID, st.Cycles, st.Commands, st.Rejections, st.TransportFailures, st.Restarts, st.State)
	}
}

// logStats prints one line per session every interval until ctx is done.
func logStats(ctx context.Context, loops []*session.Session, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range loops {
				st := s.Stats()
				log.Printf("Stats %s: state=%s cycles=%d commands=%d last=%s (%s) rejections=%d failures=%d",
					st.SessionID, st.State, st.Cycles, st.Commands, st.LastCommand, st.LastStage, st.Rejections, st.TransportFailures)
			}
		}
	}
}

// splitSessions parses a comma-separated id list, dropping blanks and duplicates.
func splitSessions(s string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, id := range strings.Split(s, ",") {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		var i int
		if _, err := fmt.Sscanf(val, "%d", &i); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64OrDefault(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}
