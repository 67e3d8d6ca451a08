// Package logging builds the command logger: a complete debug trail in
// a timestamped file plus colorized warnings and errors on stderr.
package logging

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a logger writing everything at debug and above to a new
// timestamped file under dir, and warnings and above to stderr. It
// returns the log file path alongside the logger.
func New(dir string) (*zap.Logger, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", err
	}
	path := filepath.Join(dir, time.Now().Format("20060102-150405")+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, "", err
	}

	fileCfg := zap.NewProductionEncoderConfig()
	fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	fileCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(fileCfg),
		zapcore.AddSync(file),
		zapcore.DebugLevel,
	)

	stderrCfg := zap.NewDevelopmentEncoderConfig()
	stderrCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	stderrCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(stderrCfg),
		zapcore.Lock(os.Stderr),
		zapcore.WarnLevel,
	)

	return zap.New(zapcore.NewTee(fileCore, stderrCore)), path, nil
}
