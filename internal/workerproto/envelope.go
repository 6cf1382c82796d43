// Package workerproto defines the newline-delimited JSON envelope the
// daemon and worker exchange over the worker's stdin/stdout pipe (spec §2,
// §4.5 "Worker IPC"). It mirrors internal/ipc's CLI-facing envelope shape
// so the daemon can largely forward one to the other, but is a distinct
// type: the worker speaks only to its one supervising daemon, never to a
// CLI directly, and carries a worker_ready handshake message ipc.Request
// has no equivalent for.
package workerproto

import "encoding/json"

// Kind distinguishes the three message shapes carried over the pipe.
type Kind string

const (
	// KindCommand is sent daemon -> worker: "run this operation".
	KindCommand Kind = "command"
	// KindReply is sent worker -> daemon: the result of a command.
	KindReply Kind = "reply"
	// KindEvent is sent worker -> daemon unprompted: a lifecycle
	// notification such as worker_ready or chrome_disconnected.
	KindEvent Kind = "event"
)

// Envelope is one newline-delimited JSON line on the worker pipe.
type Envelope struct {
	Kind      Kind            `json:"kind"`
	RequestID string          `json:"requestId,omitempty"`
	Op        string          `json:"op,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	OK        bool            `json:"ok,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	ErrorCode string          `json:"errorCode,omitempty"`
	ErrorMsg  string          `json:"errorMsg,omitempty"`
	Event     string          `json:"event,omitempty"`
}

// Command builds a daemon -> worker command envelope.
func Command(requestID, op string, params any) (Envelope, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: KindCommand, RequestID: requestID, Op: op, Params: raw}, nil
}

// Ok builds a successful worker -> daemon reply envelope.
func Ok(requestID string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: KindReply, RequestID: requestID, OK: true, Data: raw}, nil
}

// Fail builds a failed worker -> daemon reply envelope.
func Fail(requestID, code, msg string) Envelope {
	return Envelope{Kind: KindReply, RequestID: requestID, OK: false, ErrorCode: code, ErrorMsg: msg}
}

// WorkerReady builds the handshake event the worker emits once Chrome is
// launched, CDP is connected, and the page target is attached (spec §4.5).
func WorkerReady(data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: KindEvent, Event: "worker_ready", Data: raw}, nil
}

// ChromeDisconnected builds the event the worker emits if its CDP
// connection drops unexpectedly, so the daemon can tear the session down
// and report CodeConnectionError on the next CLI command.
func ChromeDisconnected(reason string) Envelope {
	return Envelope{Kind: KindEvent, Event: "chrome_disconnected", ErrorMsg: reason}
}
