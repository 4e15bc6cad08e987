/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DefaultLogLevel    = "info"
	DefaultLogEncoding = "console"
)

// logConfig zap config, level and encoding are set per runner
const logConfig = `{
  "level": "info",
  "encoding": "console",
  "outputPaths": ["stdout"],
  "errorOutputPaths": ["stderr"],
  "encoderConfig": {
    "messageKey": "message",
    "levelKey": "level",
    "levelEncoder": "uppercase",
    "timeKey": "time",
    "timeEncoder": "ISO8601",
    "nameKey": "logger",
    "callerKey": "caller",
    "callerEncoder": "short"
  }
}`

type Logger struct {
	*zap.SugaredLogger
}

// With returns child logger with added context, e.g. With("scenario", name)
func (m *Logger) With(args ...interface{}) *Logger {
	return &Logger{m.SugaredLogger.With(args...)}
}

func buildLogger(level, encoding string) (*zap.Logger, error) {
	var cfg zap.Config
	if err := jsoniter.UnmarshalFromString(logConfig, &cfg); err != nil {
		return nil, errors.Wrap(err, "bad log config")
	}
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Wrapf(err, "bad log level %q", level)
	}
	switch encoding {
	case "console":
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json":
	default:
		return nil, errors.Errorf("bad log encoding %q", encoding)
	}
	cfg.Encoding = encoding
	return cfg.Build()
}

// CheckLogConfig reports bad level or encoding, empty values mean defaults
func CheckLogConfig(level, encoding string) error {
	_, err := buildLogger(orDefault(level, DefaultLogLevel), orDefault(encoding, DefaultLogEncoding))
	return err
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// NewLogger logger for runner config, config is validated before, so bad level or encoding panics
func NewLogger(cfg *RunnerConfig) *Logger {
	l, err := buildLogger(orDefault(cfg.LogLevel, DefaultLogLevel), orDefault(cfg.LogEncoding, DefaultLogEncoding))
	if err != nil {
		panic(err)
	}
	return &Logger{l.Named("ncmploader").Sugar()}
}

// NewNopLogger logger which discards everything, used in tests
func NewNopLogger() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}
