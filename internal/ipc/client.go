package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/nrednav/cuid2"
)

// ErrDaemonNotRunning is returned when no daemon is listening on the
// expected socket.
var ErrDaemonNotRunning = errors.New("daemon is not running")

// Client is the CLI's connection to the daemon's Unix domain socket.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
}

// DialPath connects to the daemon listening at socketPath.
func DialPath(socketPath string) (*Client, error) {
	if _, err := os.Stat(socketPath); errors.Is(err, os.ErrNotExist) {
		return nil, ErrDaemonNotRunning
	}

	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}

	return &Client{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// Send marshals req, sends it, and blocks for the correlated Response.
// Each call generates its own requestId via cuid2 if the caller left one
// unset, matching the request/response correlation model in spec §4.1.
func (c *Client) Send(req Request) (Response, error) {
	if req.RequestID == "" {
		req.RequestID = cuid2.Generate()
	}

	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("parse response: %w", err)
	}
	return resp, nil
}

// SendType is a convenience wrapper for a command with no params.
func (c *Client) SendType(msgType string) (Response, error) {
	return c.Send(Request{Type: msgType})
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// IsDaemonRunningAt reports whether a daemon is reachable at socketPath.
func IsDaemonRunningAt(socketPath string) bool {
	if _, err := os.Stat(socketPath); errors.Is(err, os.ErrNotExist) {
		return false
	}
	conn, err := net.DialTimeout("unix", socketPath, time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
