// Package log wraps zap the way the room/worker/connection layers expect:
// a small Logger interface with printf-style levels, handed out per-room
// and per-connection with structured fields already attached, so call
// sites never build their own format strings with IDs baked in.
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the interface every component in this module logs through.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	// With returns a Logger with additional structured fields attached to
	// every subsequent line.
	With(args ...interface{}) Logger
}

type zapLogger struct {
	s *zap.SugaredLogger
}

func (l *zapLogger) Debugf(format string, args ...interface{}) { l.s.Debugf(format, args...) }
func (l *zapLogger) Infof(format string, args ...interface{})  { l.s.Infof(format, args...) }
func (l *zapLogger) Warnf(format string, args ...interface{})  { l.s.Warnf(format, args...) }
func (l *zapLogger) Errorf(format string, args ...interface{}) { l.s.Errorf(format, args...) }

func (l *zapLogger) With(args ...interface{}) Logger {
	return &zapLogger{s: l.s.With(args...)}
}

// FileConfig configures the rotating file sink. cmd/gameserver fills it
// from the top-level logging section (logging.format, not the
// logging.rooms / logging.players keys): Format selects "json" (machine-readable, for log aggregation) or "console"
// (human-readable, for local development); everything else is the
// lumberjack rotation policy.
type FileConfig struct {
	Path       string
	Format     string // "json" | "console"
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      string // "debug" | "info" | "warn" | "error"
}

// New builds a root Logger. With an empty Path it logs to stderr only;
// otherwise stderr and the rotating file both receive lines.
func New(cfg FileConfig) (Logger, error) {
	level := parseLevel(cfg.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), level),
	}
	if cfg.Path != "" {
		rotate := &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 10),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotate), level))
	}

	zl := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &zapLogger{s: zl.Sugar()}, nil
}

// NewNop returns a Logger that discards everything, for tests.
func NewNop() Logger {
	return &zapLogger{s: zap.NewNop().Sugar()}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func parseLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
