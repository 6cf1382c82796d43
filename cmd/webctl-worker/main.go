// Command webctl-worker is the per-session process the daemon spawns: it
// owns one Chrome instance, one CDP connection, and all telemetry
// accumulated for that session, driven by command envelopes read from
// stdin (spec §2, §4.5).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/grantcarthew/webctl/internal/config"
	"github.com/grantcarthew/webctl/internal/logging"
	"github.com/grantcarthew/webctl/internal/paths"
	"github.com/grantcarthew/webctl/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "webctl-worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWorker()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.LogPath == "" {
		cfg.LogPath = paths.WorkerLogPath()
	}

	log, err := logging.New(cfg.LogPath, cfg.Debug)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer log.Sync()

	w := worker.New(log, cfg, os.Stdout)
	return w.Run(context.Background(), os.Stdin)
}
