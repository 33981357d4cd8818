package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the process-wide logger. It is usable before Init with development
// defaults.
var Log *zap.Logger
var sugar *zap.SugaredLogger

func init() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")

	l, _ := cfg.Build(zap.AddCallerSkip(1))
	Log = l
	sugar = l.Sugar()
}

// Options configures Init.
type Options struct {
	Level      string // debug, info, warn, error
	Output     string // console, file, both
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Init replaces the default logger according to opts.
func Init(opts Options) error {
	level := zap.NewAtomicLevel()
	switch strings.ToLower(opts.Level) {
	case "debug":
		level.SetLevel(zapcore.DebugLevel)
	case "warn":
		level.SetLevel(zapcore.WarnLevel)
	case "error":
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var syncer zapcore.WriteSyncer
	switch opts.Output {
	case "file", "both":
		file, err := rotatingFile(opts)
		if err != nil {
			return err
		}
		if opts.Output == "both" {
			syncer = zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout), file)
		} else {
			syncer = file
		}
	default:
		syncer = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), syncer, level)
	Log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	sugar = Log.Sugar()
	return nil
}

func rotatingFile(opts Options) (zapcore.WriteSyncer, error) {
	if opts.File == "" {
		return nil, fmt.Errorf("log file path is required for output %q", opts.Output)
	}
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSize,
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	}), nil
}

// Debug logs at debug level on the global logger.
func Debug(msg string, fields ...zap.Field) { Log.Debug(msg, fields...) }

// Info logs at info level on the global logger.
func Info(msg string, fields ...zap.Field) { Log.Info(msg, fields...) }

// Warn logs at warn level on the global logger.
func Warn(msg string, fields ...zap.Field) { Log.Warn(msg, fields...) }

// Error logs at error level on the global logger.
func Error(msg string, fields ...zap.Field) { Log.Error(msg, fields...) }

// Infof formats an Info log.
func Infof(format string, args ...interface{}) { sugar.Infof(format, args...) }

// Warnf formats a Warn log.
func Warnf(format string, args ...interface{}) { sugar.Warnf(format, args...) }

// Fatalf formats a Fatal log.
func Fatalf(format string, args ...interface{}) { sugar.Fatalf(format, args...) }

// Sync flushes buffered entries.
func Sync() error {
	return Log.Sync()
}
