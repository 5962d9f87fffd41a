// Package logging builds the zap logger used by the CLI.
package logging

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects level and encoding. Verbose forces debug level.
type Options struct {
	Level   string
	Format  string
	Verbose bool
}

// NewWriter returns a production-configured logger writing to w.
func NewWriter(w io.Writer, opts Options) (*zap.Logger, error) {
	config, err := productionConfig(opts)
	if err != nil {
		return nil, err
	}
	var enc zapcore.Encoder
	if config.Encoding == "console" {
		enc = zapcore.NewConsoleEncoder(config.EncoderConfig)
	} else {
		enc = zapcore.NewJSONEncoder(config.EncoderConfig)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), config.Level)
	return zap.New(core), nil
}

func productionConfig(opts Options) (zap.Config, error) {
	config := zap.NewProductionConfig()

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zap.Config{}, err
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)

	switch strings.ToLower(opts.Format) {
	case "", "json":
	case "console":
		config.Encoding = "console"
		config.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	default:
		return zap.Config{}, fmt.Errorf("unknown log format %q", opts.Format)
	}
	return config, nil
}

// ParseLevel maps a configured level name to a zap level. Empty means info.
func ParseLevel(name string) (zapcore.Level, error) {
	if strings.TrimSpace(name) == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
	return l, nil
}
