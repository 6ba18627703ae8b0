package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/relay-bss/batchmender/internal/config"
	"github.com/relay-bss/batchmender/internal/gateway"
	"github.com/spf13/cobra"
)

var servePort int
var serveLogDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the batchmender gateway daemon",
	Long: `Starts the batchmender gateway: a long-running daemon that combines the
periodic scheduler loop with a REST + SSE control plane.

The gateway runs the scheduler continuously and exposes a local HTTP API
(default: http://127.0.0.1:6090) so you can:

  • Check scheduler health and the last cycle's outcome
  • Trigger an off-cycle run of all due schedules, or a single schedule
  • Run ad-hoc Solution or OE remediation batches outside any schedule
  • Discover OE services still missing mandatory attributes
  • Stream live cycle/batch events via GET /events (Server-Sent Events)

Unlike 'batchmender remediate' (one-shot, single item), the gateway stays
running and drives the scheduler over time without manual intervention.

Quick API reference:
  GET  /health                         liveness check
  GET  /status                         last scheduler cycle snapshot
  POST /execute                        run all due schedules now
  POST /execute/{schedule_id}          run one schedule now, bypassing its window
  POST /remediate                      batch-remediate a list of solution ids
  POST /remediate/{solution_id}        remediate one solution
  POST /oe/discover                    list OE services with missing attributes
  POST /oe/remediate                   batch-remediate a list of OE service ids
  POST /oe/remediate/{service_id}      remediate one OE service
  GET  /oe/preview/{service_id}        dry-run the OE patch without mutating
  POST /scheduler/start                start the background loop
  POST /scheduler/stop                 stop the background loop
  GET  /events                         SSE stream of cycle/batch events`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"HTTP port to listen on (default 6090, overrides config)")
	serveCmd.Flags().StringVar(&serveLogDir, "log-dir", "logs",
		"directory to write gateway logs for later inspection")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nShutting down gateway gracefully...")
		cancel()
	}()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logFilePath, closeLog, err := setupGatewayFileLogger(serveLogDir)
	if err != nil {
		return fmt.Errorf("initialising gateway logger: %w", err)
	}
	defer closeLog()

	if servePort > 0 {
		cfg.Gateway.Port = servePort
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 6090
	}
	if cfg.Runtime.BaseURL == "" {
		return fmt.Errorf("runtime.base_url is not configured; run 'batchmender config edit' first")
	}

	fmt.Printf("batchmender gateway starting\n")
	fmt.Printf("  Runtime    : %s\n", cfg.Runtime.BaseURL)
	fmt.Printf("  Scheduler  : enabled=%v interval=%ds\n", cfg.Scheduler.Enabled, cfg.Scheduler.IntervalSeconds)
	fmt.Printf("  API        : http://127.0.0.1:%d\n", cfg.Gateway.Port)
	fmt.Printf("  Events     : http://127.0.0.1:%d/events\n\n", cfg.Gateway.Port)
	fmt.Printf("  Logs       : %s\n\n", logFilePath)
	fmt.Println("Press Ctrl+C to stop gracefully.")
	fmt.Println()

	slog.Info("gateway logger initialised", "file", logFilePath)
	gateway.Version = Version
	gw := gateway.New(cfg, slog.Default())
	return gw.Start(ctx)
}

// setupGatewayFileLogger gives every invocation its own timestamped run
// log, with a stable gateway.log always pointing at the most recent run.
func setupGatewayFileLogger(logDir string) (string, func(), error) {
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating log dir %s: %w", logDir, err)
	}

	ts := time.Now().UTC().Format("20060102-150405")
	runLogPath := filepath.Join(logDir, fmt.Sprintf("gateway-%s.log", ts))
	runFile, err := os.OpenFile(runLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", nil, fmt.Errorf("opening run log file: %w", err)
	}

	latestPath := filepath.Join(logDir, "gateway.log")
	latestFile, err := os.OpenFile(latestPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = runFile.Close()
		return "", nil, fmt.Errorf("opening latest log file: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, runFile, latestFile), &slog.HandlerOptions{
		Level:     level,
		AddSource: verbose,
	})
	slog.SetDefault(slog.New(handler))
	slog.SetLogLoggerLevel(level)

	cleanup := func() {
		_ = latestFile.Close()
		_ = runFile.Close()
	}
	return runLogPath, cleanup, nil
}
