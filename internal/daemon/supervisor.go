package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/grantcarthew/webctl/internal/workerproto"
)

// Supervisor owns the single worker subprocess: it spawns the worker
// binary, writes command envelopes to its stdin, and reads reply/event
// envelopes off its stdout, handing each to the router's callbacks. This
// generalizes the teacher's direct in-process Chrome ownership (daemon.go)
// into the three-process model spec §2 requires: the daemon never talks
// CDP itself, only to its one worker.
type Supervisor struct {
	log *zap.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	running bool

	onReply func(requestID string, ok bool, data []byte, code, msg string)
	onEvent func(event string, data []byte, errMsg string)
	onExit  func(err error)
}

// NewSupervisor creates a Supervisor. The three callbacks are invoked from
// the supervisor's own read-loop goroutine and must not block.
func NewSupervisor(log *zap.Logger,
	onReply func(requestID string, ok bool, data []byte, code, msg string),
	onEvent func(event string, data []byte, errMsg string),
	onExit func(err error),
) *Supervisor {
	return &Supervisor{log: log, onReply: onReply, onEvent: onEvent, onExit: onExit}
}

// Spawn starts the worker binary with the given extra environment
// variables, wires its stdio, and begins reading its output in a
// background goroutine. It does not wait for worker_ready; callers should
// wait on their own pending request for that.
func (sv *Supervisor) Spawn(ctx context.Context, binary string, env []string, logPath string) error {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.running {
		return fmt.Errorf("worker already running")
	}

	// ctx bounds only this call: the worker is not tied to it and keeps
	// running after ctx is cancelled, until Stop ends it.
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd := exec.Command(binary)
	cmd.Env = append(os.Environ(), env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open worker stdout: %w", err)
	}

	if logPath != "" {
		stderrFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("open worker log: %w", err)
		}
		cmd.Stderr = stderrFile
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start worker process: %w", err)
	}

	sv.cmd = cmd
	sv.stdin = stdin
	sv.running = true

	go sv.readLoop(stdout)
	go sv.waitLoop()

	return nil
}

func (sv *Supervisor) readLoop(stdout io.ReadCloser) {
	reader := bufio.NewReaderSize(stdout, 64*1024)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			var env workerproto.Envelope
			if jerr := json.Unmarshal(line, &env); jerr != nil {
				sv.log.Warn("worker sent malformed line", zap.Error(jerr))
			} else {
				sv.dispatch(env)
			}
		}
		if err != nil {
			if err != io.EOF {
				sv.log.Warn("worker stdout read error", zap.Error(err))
			}
			return
		}
	}
}

func (sv *Supervisor) dispatch(env workerproto.Envelope) {
	switch env.Kind {
	case workerproto.KindReply:
		sv.onReply(env.RequestID, env.OK, env.Data, env.ErrorCode, env.ErrorMsg)
	case workerproto.KindEvent:
		sv.onEvent(env.Event, env.Data, env.ErrorMsg)
	default:
		sv.log.Warn("worker sent unexpected envelope kind", zap.String("kind", string(env.Kind)))
	}
}

func (sv *Supervisor) waitLoop() {
	sv.mu.Lock()
	cmd := sv.cmd
	sv.mu.Unlock()
	if cmd == nil {
		return
	}
	err := cmd.Wait()

	sv.mu.Lock()
	sv.running = false
	sv.mu.Unlock()

	if sv.onExit != nil {
		sv.onExit(err)
	}
}

// Send writes one command envelope to the worker's stdin.
func (sv *Supervisor) Send(env workerproto.Envelope) error {
	sv.mu.Lock()
	stdin := sv.stdin
	running := sv.running
	sv.mu.Unlock()
	if !running || stdin == nil {
		return fmt.Errorf("worker is not running")
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal worker command: %w", err)
	}
	data = append(data, '\n')
	if _, err := stdin.Write(data); err != nil {
		return fmt.Errorf("write to worker stdin: %w", err)
	}
	return nil
}

// Running reports whether the worker process is currently alive.
func (sv *Supervisor) Running() bool {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return sv.running
}

// PID returns the worker process id, or 0 if not running.
func (sv *Supervisor) PID() int {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.cmd == nil || sv.cmd.Process == nil {
		return 0
	}
	return sv.cmd.Process.Pid
}

// Stop closes the worker's stdin (signaling it to shut down cleanly) and
// waits up to timeout before escalating to SIGKILL, mirroring the
// teacher's graceful-then-forceful stop sequence.
func (sv *Supervisor) Stop(timeout time.Duration) error {
	sv.mu.Lock()
	cmd := sv.cmd
	stdin := sv.stdin
	running := sv.running
	sv.mu.Unlock()

	if !running || cmd == nil {
		return nil
	}

	if stdin != nil {
		_ = stdin.Close()
	}

	done := make(chan struct{})
	go func() {
		for sv.Running() {
			time.Sleep(50 * time.Millisecond)
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return nil
	}
}
