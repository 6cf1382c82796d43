// Command webctl-daemon is the long-lived process the CLI spawns on first
// use: it owns the CLI-facing Unix socket and supervises exactly one
// worker subprocess for the lifetime of a session (spec §2).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/grantcarthew/webctl/internal/config"
	"github.com/grantcarthew/webctl/internal/daemon"
	"github.com/grantcarthew/webctl/internal/logging"
	"github.com/grantcarthew/webctl/internal/paths"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "webctl-daemon: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadDaemon()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.LogPath == "" {
		cfg.LogPath = paths.DaemonLogPath()
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = paths.SocketPath()
	}

	log, err := logging.New(cfg.LogPath, cfg.Debug)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer log.Sync()

	d, err := daemon.New(log, cfg)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	return d.Run(context.Background())
}
