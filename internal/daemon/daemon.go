package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/grantcarthew/webctl/internal/config"
	"github.com/grantcarthew/webctl/internal/ipc"
	"github.com/grantcarthew/webctl/internal/paths"
	"github.com/grantcarthew/webctl/internal/session"
)

// Daemon is the long-lived process that owns the CLI-facing Unix socket
// and supervises exactly one worker subprocess (spec §2). It replaces the
// teacher's single-process daemon that embedded Chrome/CDP ownership
// directly; here that responsibility moves entirely into the worker, and
// the daemon's job narrows to routing and lifecycle supervision.
type Daemon struct {
	log    *zap.Logger
	cfg    *config.Daemon
	router *Router
	server *ipc.Server
}

// New constructs a Daemon ready to Run. It does not spawn a worker; the
// worker is spawned lazily on the first start_session command.
func New(log *zap.Logger, cfg *config.Daemon) (*Daemon, error) {
	d := &Daemon{log: log, cfg: cfg}

	sv := NewSupervisor(log, nil, nil, nil)
	router := NewRouter(log, cfg, sv)
	sv.onReply = router.OnWorkerReply
	sv.onEvent = router.OnWorkerEvent
	sv.onExit = router.OnWorkerExit
	d.router = router

	socketPath := cfg.SocketPath
	if socketPath == "" {
		socketPath = paths.SocketPath()
	}
	server, err := ipc.NewServer(socketPath, router.Handle, log)
	if err != nil {
		return nil, fmt.Errorf("create ipc server: %w", err)
	}
	d.server = server

	return d, nil
}

// Run serves CLI connections until the process receives SIGINT/SIGTERM,
// then tears down any running worker and removes the socket and session
// files before returning, mirroring the teacher's graceful-shutdown
// sequence in its original daemon.go Run method.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := writePIDFile(); err != nil {
		d.log.Warn("failed to write daemon pid file", zap.Error(err))
	}
	defer removePIDFile()

	go d.router.SweepLoop(ctx)

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- d.server.Serve(ctx)
	}()

	d.log.Info("daemon started", zap.String("socket", d.server.SocketPath()))

	select {
	case <-ctx.Done():
		d.log.Info("daemon shutting down")
	case <-d.router.Quit():
		d.log.Info("daemon shutdown requested")
	case err := <-serveErrCh:
		if err != nil {
			d.log.Error("ipc server stopped unexpectedly", zap.Error(err))
		}
	}

	if d.router.state.Current() == StateReady {
		_ = d.router.sv.Stop(time.Duration(cfgStopTimeout(d.cfg)) * time.Second)
	}
	_ = session.Remove()
	_ = d.server.Close()

	return nil
}

// writePIDFile records the daemon's own PID so the CLI can force-kill an
// unresponsive daemon (stop --force), mirroring the teacher's PID-file
// convention applied here to the daemon process rather than the browser.
func writePIDFile() error {
	if _, err := paths.EnsureSessionDir(); err != nil {
		return err
	}
	return os.WriteFile(paths.PIDPath(), []byte(strconv.Itoa(os.Getpid())), 0600)
}

func removePIDFile() {
	_ = os.Remove(paths.PIDPath())
}

// cfgStopTimeout guards against a zero-value config (e.g. in tests that
// construct config.Daemon directly without envconfig defaults).
func cfgStopTimeout(cfg *config.Daemon) int {
	if cfg.StopTimeout <= 0 {
		return 5
	}
	return cfg.StopTimeout
}
