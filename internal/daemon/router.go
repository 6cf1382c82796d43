package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/grantcarthew/webctl/internal/apperr"
	"github.com/grantcarthew/webctl/internal/config"
	"github.com/grantcarthew/webctl/internal/ipc"
	"github.com/grantcarthew/webctl/internal/paths"
	"github.com/grantcarthew/webctl/internal/session"
	"github.com/grantcarthew/webctl/internal/workerproto"
)

// localCommands are handled by the router itself without involving the
// worker at all (spec §4.1: start/stop/status are daemon-local; every
// other command is forwarded across the worker pipe).
const (
	cmdStartSession = "start_session"
	cmdStopSession  = "stop_session"
	cmdStatus       = "status"
	cmdShutdown     = "shutdown"
)

// Router dispatches incoming CLI requests: a small fixed set of commands
// are handled locally against daemon state, everything else is forwarded
// to the supervised worker and the router blocks the caller's goroutine
// until either the worker replies or the command deadline expires (spec
// §4.1 "router state machine").
type Router struct {
	log     *zap.Logger
	cfg     *config.Daemon
	state   *StateMachine
	pending *PendingManager
	sv      *Supervisor
	quit    chan struct{}
	quitOnce sync.Once
}

// NewRouter creates a Router over an already-constructed Supervisor.
func NewRouter(log *zap.Logger, cfg *config.Daemon, sv *Supervisor) *Router {
	return &Router{
		log:     log,
		cfg:     cfg,
		state:   NewStateMachine(),
		pending: NewPendingManager(),
		sv:      sv,
		quit:    make(chan struct{}),
	}
}

// Quit is closed once the daemon should exit, after an IPC "shutdown"
// request has torn down any running session.
func (r *Router) Quit() <-chan struct{} { return r.quit }

// Handle processes one CLI request and returns the Response to send back.
func (r *Router) Handle(req ipc.Request) ipc.Response {
	switch req.Type {
	case cmdStartSession:
		return r.handleStart(req)
	case cmdStopSession:
		return r.handleStop(req)
	case cmdStatus:
		return r.handleStatus(req)
	case cmdShutdown:
		return r.handleShutdown(req)
	default:
		return r.forward(req)
	}
}

func (r *Router) handleStart(req ipc.Request) ipc.Response {
	if !r.state.CompareAndTransition(StateNoWorker, StateStarting) {
		return ipc.ErrorResponse(req.RequestID, apperr.CodeSessionAlreadyRunning, "a session is already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.WorkerSpawnTimeout)*time.Second)
	defer cancel()

	env := []string{
		"WEBCTL_WORKER_LOG=" + paths.WorkerLogPath(),
	}
	if err := r.sv.Spawn(ctx, r.cfg.WorkerBinary, env, paths.WorkerLogPath()); err != nil {
		r.state.TransitionTo(StateNoWorker)
		return ipc.ErrorResponse(req.RequestID, apperr.CodeChromeLaunchFailed, fmt.Sprintf("spawn worker: %v", err))
	}

	replyCh := r.pending.Register(req.RequestID, time.Duration(r.cfg.WorkerSpawnTimeout)*time.Second)
	workerEnv, err := workerproto.Command(req.RequestID, "start", json.RawMessage(req.Params))
	if err != nil {
		r.state.TransitionTo(StateNoWorker)
		return ipc.ErrorResponse(req.RequestID, apperr.CodeWorkerStartFailed, "encode start command")
	}
	if err := r.sv.Send(workerEnv); err != nil {
		r.pending.Forget(req.RequestID)
		r.state.TransitionTo(StateNoWorker)
		return ipc.ErrorResponse(req.RequestID, apperr.CodeWorkerStartFailed, fmt.Sprintf("send start command: %v", err))
	}

	reply := <-replyCh
	if !reply.ok {
		r.state.TransitionTo(StateNoWorker)
		return ipc.ErrorResponse(req.RequestID, reply.errorCode, reply.errorMsg)
	}

	r.state.TransitionTo(StateReady)

	_ = session.Write(&session.Session{
		WorkerPID: r.sv.PID(),
		StartedAt: time.Now(),
	})

	return ipc.SuccessResponse(req.RequestID, json.RawMessage(reply.data))
}

func (r *Router) handleStop(req ipc.Request) ipc.Response {
	prev := r.state.TransitionTo(StateStopping)
	if prev == StateNoWorker {
		r.state.TransitionTo(StateNoWorker)
		return ipc.ErrorResponse(req.RequestID, apperr.CodeNoSession, "no active session")
	}

	if err := r.sv.Stop(time.Duration(r.cfg.StopTimeout) * time.Second); err != nil {
		r.log.Warn("error stopping worker", zap.Error(err))
	}

	r.pending.FailAll(apperr.CodeNoSession, "session stopped")
	_ = session.Remove()
	r.state.TransitionTo(StateNoWorker)

	return ipc.SuccessResponse(req.RequestID, nil)
}

// handleShutdown stops any running session and signals Daemon.Run to
// exit, the counterpart to stop_session: that ends one session and keeps
// the daemon listening for the next start, this ends the process itself
// (spec §3 "Session... destroyed on stop, crash, or daemon shutdown").
func (r *Router) handleShutdown(req ipc.Request) ipc.Response {
	if r.state.Current() == StateReady {
		r.state.TransitionTo(StateStopping)
		if err := r.sv.Stop(time.Duration(r.cfg.StopTimeout) * time.Second); err != nil {
			r.log.Warn("error stopping worker during shutdown", zap.Error(err))
		}
		r.pending.FailAll(apperr.CodeNoSession, "daemon shutting down")
		_ = session.Remove()
		r.state.TransitionTo(StateNoWorker)
	}
	r.quitOnce.Do(func() { close(r.quit) })
	return ipc.SuccessResponse(req.RequestID, nil)
}

func (r *Router) handleStatus(req ipc.Request) ipc.Response {
	running := r.state.Current() == StateReady
	data := ipc.StatusData{Running: running}
	if running {
		data.WorkerPID = r.sv.PID()
		if s, err := session.Read(); err == nil {
			data.URL = s.TargetURL
			data.Title = s.TargetTitle
		}
	}
	return ipc.SuccessResponse(req.RequestID, data)
}

// forward relays any non-lifecycle command to the worker unchanged and
// waits for its correlated reply, honoring the configured command
// timeout.
func (r *Router) forward(req ipc.Request) ipc.Response {
	if r.state.Current() != StateReady {
		return ipc.ErrorResponse(req.RequestID, apperr.CodeNoSession, "no active session")
	}

	timeout := time.Duration(r.cfg.CommandTimeout) * time.Second
	replyCh := r.pending.Register(req.RequestID, timeout)

	env, err := workerproto.Command(req.RequestID, req.Type, json.RawMessage(req.Params))
	if err != nil {
		r.pending.Forget(req.RequestID)
		return ipc.ErrorResponse(req.RequestID, apperr.CodeDaemonError, "encode command")
	}
	if err := r.sv.Send(env); err != nil {
		r.pending.Forget(req.RequestID)
		return ipc.ErrorResponse(req.RequestID, apperr.CodeConnectionError, fmt.Sprintf("send command: %v", err))
	}

	reply := <-replyCh
	if !reply.ok {
		return ipc.ErrorResponse(req.RequestID, reply.errorCode, reply.errorMsg)
	}
	return ipc.SuccessResponse(req.RequestID, json.RawMessage(reply.data))
}

// OnWorkerReply is the Supervisor callback that resolves a pending
// request when the worker replies.
func (r *Router) OnWorkerReply(requestID string, ok bool, data []byte, code, msg string) {
	r.pending.Resolve(requestID, workerReply{ok: ok, data: data, errorCode: code, errorMsg: msg})
}

// OnWorkerEvent is the Supervisor callback for unprompted worker events.
func (r *Router) OnWorkerEvent(event string, data []byte, errMsg string) {
	switch event {
	case "chrome_disconnected":
		r.log.Warn("chrome disconnected, tearing down session", zap.String("reason", errMsg))
		r.state.TransitionTo(StateNoWorker)
		r.pending.FailAll(apperr.CodeConnectionError, "chrome connection lost: "+errMsg)
		_ = session.Remove()
	default:
		r.log.Debug("worker event", zap.String("event", event))
	}
}

// OnWorkerExit is the Supervisor callback invoked when the worker process
// terminates, expected or not.
func (r *Router) OnWorkerExit(err error) {
	if r.state.Current() == StateStopping {
		return
	}
	r.log.Warn("worker process exited unexpectedly", zap.Error(err))
	r.state.TransitionTo(StateNoWorker)
	r.pending.FailAll(apperr.CodeConnectionError, "worker process exited")
	_ = session.Remove()
}

// SweepLoop periodically expires pending requests past their deadline.
// Run as a goroutine for the daemon's lifetime.
func (r *Router) SweepLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pending.SweepExpired()
		}
	}
}
