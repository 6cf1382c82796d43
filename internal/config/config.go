// Package config loads ambient process configuration for the daemon and
// worker from the environment, grounded on the kelseyhightower/envconfig
// idiom used by the kernel-images server example (cmd/config/config.go):
// a flat struct of env-tagged fields with defaults. Values are not
// validated after load.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Daemon holds ambient daemon process configuration.
type Daemon struct {
	SocketPath     string `envconfig:"WEBCTL_SOCKET_PATH"`
	PIDPath        string `envconfig:"WEBCTL_PID_PATH"`
	LogPath        string `envconfig:"WEBCTL_DAEMON_LOG"`
	WorkerBinary   string `envconfig:"WEBCTL_WORKER_BINARY" default:"webctl-worker"`
	CommandTimeout int    `envconfig:"WEBCTL_COMMAND_TIMEOUT_SECONDS" default:"10"`
	WorkerSpawnTimeout int `envconfig:"WEBCTL_WORKER_SPAWN_TIMEOUT_SECONDS" default:"30"`
	StopTimeout    int    `envconfig:"WEBCTL_STOP_TIMEOUT_SECONDS" default:"5"`
	Debug          bool   `envconfig:"WEBCTL_DEBUG" default:"false"`
}

// Worker holds ambient worker process configuration. Session-specific
// fields (target URL, headless, chrome flags, ...) arrive instead via the
// start_session_request params, per spec §6's "start session configuration
// object" — this struct covers only what the worker needs before it has
// seen that message.
type Worker struct {
	LogPath              string `envconfig:"WEBCTL_WORKER_LOG"`
	MaxNetworkRequests    int   `envconfig:"WEBCTL_MAX_NETWORK_REQUESTS" default:"10000"`
	MaxConsoleMessages    int   `envconfig:"WEBCTL_MAX_CONSOLE_MESSAGES" default:"10000"`
	ExpanderMaxDepth      int   `envconfig:"WEBCTL_EXPANDER_MAX_DEPTH" default:"3"`
	ExpanderMaxProperties int   `envconfig:"WEBCTL_EXPANDER_MAX_PROPERTIES" default:"100"`
	ExpanderFailureThreshold int `envconfig:"WEBCTL_EXPANDER_FAILURE_THRESHOLD" default:"5"`
	QueryCacheTTLMillis   int   `envconfig:"WEBCTL_QUERY_CACHE_TTL_MS" default:"500"`
	Debug                 bool  `envconfig:"WEBCTL_DEBUG" default:"false"`
}

// LoadDaemon loads daemon configuration from the environment. Path fields
// left unset stay empty; no path defaults are applied here.
func LoadDaemon() (*Daemon, error) {
	var cfg Daemon
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load daemon config: %w", err)
	}
	return &cfg, nil
}

// LoadWorker loads worker configuration from the environment.
func LoadWorker() (*Worker, error) {
	var cfg Worker
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load worker config: %w", err)
	}
	return &cfg, nil
}
