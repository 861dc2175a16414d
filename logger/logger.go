// Package logger builds the zap logger of the evaluation tools.  Console
// output goes to stderr since stdout carries the report.
package logger

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config of the logger
type Config struct {
	// Level is one of debug, info, warn or error
	Level string `koanf:"level"`
	// Debug forces the debug level
	Debug bool `koanf:"debug"`
	// File is an optional JSON log file, rotated by size
	File string `koanf:"file"`
	// MaxSize in megabytes of the log file before it is rotated
	MaxSize int `koanf:"maxsize"`
	// MaxBackups is the number of rotated files kept
	MaxBackups int `koanf:"maxbackups"`
}

// DefaultConfig logs at info level to the console only
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		MaxSize:    100,
		MaxBackups: 3,
	}
}

// level returns the zap level of the config
func (c Config) level() (zapcore.Level, error) {

	if c.Debug {
		return zapcore.DebugLevel, nil
	}

	if c.Level == "" {
		return zapcore.InfoLevel, nil
	}

	var lvl zapcore.Level

	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}

	return lvl, nil
}

// Validate checks the log level
func (c Config) Validate() error {
	_, err := c.level()
	return err
}

// New returns a logger writing human readable lines to stderr and, when
// File is set, JSON lines to the rotated file
func New(cfg Config) (*zap.Logger, error) {
	return newLogger(cfg, zapcore.Lock(os.Stderr))
}

// newLogger builds the tee core with console output to console
func newLogger(cfg Config, console zapcore.WriteSyncer) (*zap.Logger, error) {

	lvl, err := cfg.level()

	if err != nil {
		return nil, err
	}

	enabler := zap.NewAtomicLevelAt(lvl)

	consoleEnc := zap.NewDevelopmentEncoderConfig()
	consoleEnc.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEnc), console, enabler),
	}

	if cfg.File != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(fileWriter(cfg)),
			enabler,
		))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

// fileWriter returns the rotating writer of the log file
func fileWriter(cfg Config) io.Writer {
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
	}
}
