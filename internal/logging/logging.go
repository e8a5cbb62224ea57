// Package logging builds the CLI's structured logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level, encoding, and destination.
type Config struct {
	Level  string    // debug, info, warn, error; default warn
	Format string    // console, logfmt, json; default console
	Output io.Writer // default os.Stderr
}

// New returns a sugared zap logger for conf.
func New(conf Config) (*zap.SugaredLogger, error) {
	level := zapcore.WarnLevel
	if conf.Level != "" {
		lvl, err := zapcore.ParseLevel(strings.ToLower(conf.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", conf.Level, err)
		}
		level = lvl
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = func(ts time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(ts.UTC().Format(time.RFC3339))
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(conf.Format) {
	case "", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	case "logfmt":
		encoder = zaplogfmt.NewEncoder(encCfg)
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q", conf.Format)
	}

	out := conf.Output
	if out == nil {
		out = os.Stderr
	}
	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(out)), level)
	return zap.New(core).Sugar(), nil
}
