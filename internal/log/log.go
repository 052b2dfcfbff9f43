package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	logger     *zap.SugaredLogger
	loggerOnce sync.Once
	mu         sync.RWMutex
	minLevel   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// initLogger builds the process-wide console logger writing to stderr.
func initLogger() {
	loggerOnce.Do(func() {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stderr),
			minLevel,
		)

		mu.Lock()
		if logger == nil {
			logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).Sugar()
		}
		mu.Unlock()
	})
}

// SetLevel changes the minimum level of the default logger.
func SetLevel(l Level) {
	initLogger()
	switch l {
	case LevelDebug:
		minLevel.SetLevel(zapcore.DebugLevel)
	case LevelWarn:
		minLevel.SetLevel(zapcore.WarnLevel)
	case LevelError:
		minLevel.SetLevel(zapcore.ErrorLevel)
	default:
		minLevel.SetLevel(zapcore.InfoLevel)
	}
}

// SetLogger replaces the underlying zap logger. Tests use it with
// zaptest/observer to inspect emitted entries.
func SetLogger(l *zap.Logger) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	logger = l.WithOptions(zap.AddCallerSkip(2)).Sugar()
}

// Sync flushes buffered entries. Call before exit.
func Sync() {
	initLogger()
	mu.RLock()
	defer mu.RUnlock()
	_ = logger.Sync()
}

func Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, msg, kv...)
}

func Warn(msg string, err error, kv ...any) {
	logWithLevel(LevelWarn, msg, withErr(err, kv)...)
}

func Error(msg string, err error, kv ...any) {
	logWithLevel(LevelError, msg, withErr(err, kv)...)
}

// withErr prepends the error into the key-value list.
func withErr(err error, kv []any) []any {
	return append([]any{"err", err}, kv...)
}

func logWithLevel(level Level, msg string, kv ...any) {
	initLogger()

	// Expect kv as pairs; a dangling key is dropped.
	if len(kv)%2 == 1 {
		kv = kv[:len(kv)-1]
	}

	mu.RLock()
	l := logger
	mu.RUnlock()

	switch level {
	case LevelDebug:
		l.Debugw(msg, kv...)
	case LevelWarn:
		l.Warnw(msg, kv...)
	case LevelError:
		l.Errorw(msg, kv...)
	default:
		l.Infow(msg, kv...)
	}
}
