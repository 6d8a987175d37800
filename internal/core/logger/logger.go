package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Info(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

type Field = zap.Field

func StringField(key, val string) Field      { return zap.String(key, val) }
func ErrorField(key string, err error) Field { return zap.NamedError(key, err) }
func AnyField(key string, val any) Field     { return zap.Any(key, val) }
func Int64Field(key string, val int64) Field { return zap.Int64(key, val) }

// NewLogger builds a JSON logger that splits info-and-below from
// warn-and-above. With an empty dir the two streams go to stdout and stderr,
// otherwise to dir/info.log and dir/error.log.
func NewLogger(dir string) (*zap.Logger, func(), error) {
	infoSink, errorSink, closeSinks, err := openSinks(dir)
	if err != nil {
		return nil, nil, err
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	infoCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		infoSink,
		zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl <= zapcore.InfoLevel
		}),
	)

	errorCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		errorSink,
		zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= zapcore.WarnLevel
		}),
	)

	logger := zap.New(zapcore.NewTee(infoCore, errorCore), zap.AddCaller())

	cleanup := func() {
		_ = logger.Sync()
		closeSinks()
	}

	return logger, cleanup, nil
}

func openSinks(dir string) (zapcore.WriteSyncer, zapcore.WriteSyncer, func(), error) {
	if dir == "" {
		return zapcore.Lock(os.Stdout), zapcore.Lock(os.Stderr), func() {}, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("create log dir: %w", err)
	}

	infoFile, err := os.OpenFile(filepath.Join(dir, "info.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open info log file: %w", err)
	}

	errorFile, err := os.OpenFile(filepath.Join(dir, "error.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		infoFile.Close()
		return nil, nil, nil, fmt.Errorf("open error log file: %w", err)
	}

	closeFiles := func() {
		infoFile.Close()
		errorFile.Close()
	}

	return zapcore.AddSync(infoFile), zapcore.AddSync(errorFile), closeFiles, nil
}
