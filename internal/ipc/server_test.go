package ipc

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestServer_ClientCommunication(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "test.sock")

	handler := func(req Request) Response {
		switch req.Type {
		case "ping":
			return SuccessResponse(req.RequestID, map[string]string{"reply": "pong"})
		case "echo":
			return SuccessResponse(req.RequestID, json.RawMessage(req.Params))
		default:
			return ErrorResponse(req.RequestID, "UNKNOWN_COMMAND", "unknown command")
		}
	}

	server, err := NewServer(socketPath, handler, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = server.Serve(ctx) }()
	defer func() { _ = server.Close() }()

	time.Sleep(50 * time.Millisecond)

	client, err := DialPath(socketPath)
	if err != nil {
		t.Fatalf("failed to connect client: %v", err)
	}
	defer client.Close()

	resp, err := client.SendType("ping")
	if err != nil {
		t.Fatalf("failed to send ping: %v", err)
	}
	if resp.Status != StatusOK {
		t.Errorf("expected ok response, got error: %s", resp.Error)
	}

	resp, err = client.Send(Request{Type: "echo", Params: []byte(`{"target":"test-target"}`)})
	if err != nil {
		t.Fatalf("failed to send echo: %v", err)
	}
	if resp.Status != StatusOK {
		t.Errorf("expected ok response, got error: %s", resp.Error)
	}

	resp, err = client.SendType("unknown")
	if err != nil {
		t.Fatalf("failed to send unknown: %v", err)
	}
	if resp.Status != StatusError {
		t.Error("expected error response for unknown command")
	}
	if resp.Error != "unknown command" {
		t.Errorf("unexpected error message: %s", resp.Error)
	}
}

func TestServer_MultipleClients(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "test.sock")

	var counter int32
	handler := func(req Request) Response {
		count := atomic.AddInt32(&counter, 1)
		return SuccessResponse(req.RequestID, map[string]int{"count": int(count)})
	}

	server, err := NewServer(socketPath, handler, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = server.Serve(ctx) }()
	defer func() { _ = server.Close() }()

	time.Sleep(50 * time.Millisecond)

	client1, err := DialPath(socketPath)
	if err != nil {
		t.Fatalf("failed to connect client1: %v", err)
	}
	defer client1.Close()

	client2, err := DialPath(socketPath)
	if err != nil {
		t.Fatalf("failed to connect client2: %v", err)
	}
	defer client2.Close()

	if _, err := client1.SendType("inc"); err != nil {
		t.Fatalf("client1 send failed: %v", err)
	}
	if _, err := client2.SendType("inc"); err != nil {
		t.Fatalf("client2 send failed: %v", err)
	}

	if atomic.LoadInt32(&counter) != 2 {
		t.Errorf("expected counter=2, got %d", atomic.LoadInt32(&counter))
	}
}

func TestServer_CleanupOnClose(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "test.sock")

	handler := func(req Request) Response {
		return SuccessResponse(req.RequestID, nil)
	}

	server, err := NewServer(socketPath, handler, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = server.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)

	if _, err := os.Stat(socketPath); err != nil {
		t.Errorf("socket should exist: %v", err)
	}

	cancel()
	_ = server.Close()

	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("socket should be removed after close")
	}
}

func TestIsDaemonRunning_NotRunning(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "nonexistent.sock")

	if IsDaemonRunningAt(socketPath) {
		t.Error("expected daemon to not be running")
	}
}

func TestClient_DaemonNotRunning(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "nonexistent.sock")

	_, err := DialPath(socketPath)
	if err != ErrDaemonNotRunning {
		t.Errorf("expected ErrDaemonNotRunning, got %v", err)
	}
}
