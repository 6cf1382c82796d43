package daemon

import (
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/grantcarthew/webctl/internal/config"
	"github.com/grantcarthew/webctl/internal/ipc"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	cfg := &config.Daemon{CommandTimeout: 1, WorkerSpawnTimeout: 1, StopTimeout: 1}
	sv := NewSupervisor(zap.NewNop(), nil, nil, nil)
	return NewRouter(zap.NewNop(), cfg, sv)
}

func TestRouter_StatusWhenNoWorker(t *testing.T) {
	r := newTestRouter(t)

	resp := r.Handle(ipc.Request{Type: "status", RequestID: "req-1"})
	if resp.Status != ipc.StatusOK {
		t.Fatalf("expected ok status, got %+v", resp)
	}

	var data ipc.StatusData
	mustUnmarshal(t, resp.Data, &data)
	if data.Running {
		t.Fatal("expected Running=false with no worker spawned")
	}
}

func TestRouter_StopSessionWithNoWorkerFails(t *testing.T) {
	r := newTestRouter(t)

	resp := r.Handle(ipc.Request{Type: "stop_session", RequestID: "req-2"})
	if resp.Status == ipc.StatusOK {
		t.Fatal("expected stop_session to fail when no session is running")
	}
	if r.state.Current() != StateNoWorker {
		t.Fatalf("expected state to remain NoWorker, got %v", r.state.Current())
	}
}

// TestRouter_ShutdownClosesQuitWithoutWorker verifies shutdown tears the
// daemon down even when no session was ever started (spec distinguishes
// stop_session, which only ends the session, from shutdown, which also
// ends the daemon process).
func TestRouter_ShutdownClosesQuitWithoutWorker(t *testing.T) {
	r := newTestRouter(t)

	resp := r.Handle(ipc.Request{Type: "shutdown", RequestID: "req-3"})
	if resp.Status != ipc.StatusOK {
		t.Fatalf("expected ok response, got %+v", resp)
	}

	select {
	case <-r.Quit():
	case <-time.After(time.Second):
		t.Fatal("Quit() channel was not closed after shutdown")
	}
}

// TestRouter_ShutdownIsIdempotent ensures a second shutdown request (e.g.
// a racing CLI retry) never panics on a double close of the quit channel.
func TestRouter_ShutdownIsIdempotent(t *testing.T) {
	r := newTestRouter(t)

	r.Handle(ipc.Request{Type: "shutdown", RequestID: "req-4"})
	resp := r.Handle(ipc.Request{Type: "shutdown", RequestID: "req-5"})
	if resp.Status != ipc.StatusOK {
		t.Fatalf("expected ok response on repeated shutdown, got %+v", resp)
	}
}

func TestRouter_ForwardWithNoSessionFails(t *testing.T) {
	r := newTestRouter(t)

	resp := r.Handle(ipc.Request{Type: "network", RequestID: "req-6"})
	if resp.Status == ipc.StatusOK {
		t.Fatal("expected forwarded command to fail with no active session")
	}
}

func mustUnmarshal(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
}
