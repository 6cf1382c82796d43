// Package ipc implements the CLI<->daemon wire protocol: a newline
// delimited JSON envelope over a Unix domain socket, framed and served the
// way the teacher's original protocol.go/server.go/client.go did, but with
// the envelope shape spec §4.1/§6 requires (type/sessionId/requestId plus
// a status/data/error/errorCode reply) in place of the teacher's bare
// Cmd/Target/Params request and OK/Data/Error response.
package ipc

import "encoding/json"

// Request is a command sent from the CLI to the daemon.
type Request struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	RequestID string          `json:"requestId"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// Status is the closed set of outcomes a Response can carry.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Response is the reply the daemon sends back for a Request, correlated by
// RequestID.
type Response struct {
	RequestID string          `json:"requestId"`
	Status    Status          `json:"status"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorCode string          `json:"errorCode,omitempty"`
}

// SuccessResponse builds an ok Response carrying data, marshaled to JSON.
func SuccessResponse(requestID string, data any) Response {
	var raw json.RawMessage
	if data != nil {
		raw, _ = json.Marshal(data)
	}
	return Response{RequestID: requestID, Status: StatusOK, Data: raw}
}

// ErrorResponse builds an error Response with a message and IPC error code.
func ErrorResponse(requestID, code, msg string) Response {
	return Response{RequestID: requestID, Status: StatusError, Error: msg, ErrorCode: code}
}

// StatusData is the response payload for the "status" command (spec §6).
type StatusData struct {
	Running     bool   `json:"running"`
	URL         string `json:"url,omitempty"`
	Title       string `json:"title,omitempty"`
	WorkerPID   int    `json:"workerPid,omitempty"`
	NavigationID int   `json:"navigationId,omitempty"`
}

// StartParams is the params payload for the "start_session" command.
type StartParams struct {
	URL      string   `json:"url,omitempty"`
	Headless bool     `json:"headless"`
	ChromeArgs []string `json:"chromeArgs,omitempty"`
}
