// Package logging builds the service logger. Log calls go through the
// ectologger interface and are written by a zap core.
package logging

import (
	"encoding/json"
	"strings"

	"github.com/Gobusters/ectologger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level       string
	Pretty      bool
	ServiceName string
}

func NewLogger(cfg Config) (ectologger.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Pretty {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zl, err := zapCfg.Build(zap.WithCaller(false))
	if err != nil {
		return nil, err
	}

	if cfg.ServiceName != "" {
		zl = zl.With(zap.String("service", cfg.ServiceName))
	}

	return ectologger.NewEctoLogger(newZapSink(zl)), nil
}

// newZapSink adapts log messages onto a zap logger. Messages are flattened
// through JSON so the sink does not depend on the message struct layout.
func newZapSink(zl *zap.Logger) func(ectologger.EctoLogMessage) {
	return func(msg ectologger.EctoLogMessage) {
		raw, err := json.Marshal(msg)
		if err != nil {
			zl.Error("unencodable log message", zap.Error(err))
			return
		}

		var entry map[string]any
		if err := json.Unmarshal(raw, &entry); err != nil {
			zl.Info(string(raw))
			return
		}

		level := stringField(entry, "level")
		message := stringField(entry, "message", "msg")

		fields := make([]zap.Field, 0, len(entry))
		for key, value := range entry {
			lower := strings.ToLower(key)
			if lower == "level" || lower == "message" || lower == "msg" {
				continue
			}
			if value == nil {
				continue
			}
			fields = append(fields, zap.Any(lower, value))
		}

		switch strings.ToLower(level) {
		case "debug", "trace":
			zl.Debug(message, fields...)
		case "warn", "warning":
			zl.Warn(message, fields...)
		case "error", "fatal", "panic":
			zl.Error(message, fields...)
		default:
			zl.Info(message, fields...)
		}
	}
}

func stringField(entry map[string]any, keys ...string) string {
	for key, value := range entry {
		lower := strings.ToLower(key)
		for _, want := range keys {
			if lower != want {
				continue
			}
			if s, ok := value.(string); ok {
				return s
			}
		}
	}
	return ""
}
