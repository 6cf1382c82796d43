// Package logging constructs the daemon's and worker's append-only,
// debug-gated loggers. Grounded on the ambient structured-logging practice
// carried by the pack (go.uber.org/zap, as used for gpud's service logs in
// the other_examples module) rather than the teacher's ad hoc
// fmt.Fprintf(os.Stderr, ...) debug helpers in cli/root.go.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger that appends JSON lines to path. When debug is false
// only Info level and above are emitted; when true, Debug level is enabled.
func New(path string, debug bool) (*zap.Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(f), level)
	return zap.New(core), nil
}

// Discard returns a logger that drops everything, used in tests.
func Discard() *zap.Logger {
	return zap.NewNop()
}
