package utils

import (
	"log"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger   *zap.Logger
	loggerMu sync.Mutex
)

// InitLogger builds the process logger. env "production" selects the JSON
// encoder at info level; anything else gets the console encoder at debug.
func InitLogger(env string) *zap.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	var cfg zap.Config
	if strings.EqualFold(strings.TrimSpace(env), "production") {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := cfg.Build()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	logger = l
	return logger
}

// GetLogger returns the process logger, building a development one lazily.
func GetLogger() *zap.Logger {
	loggerMu.Lock()
	l := logger
	loggerMu.Unlock()
	if l == nil {
		return InitLogger("")
	}
	return l
}

// SetLogger swaps the process logger, mostly for tests.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

// LogEvent writes a standardized line with module/action/request_id.
// Avoid logging sensitive payload; message should be summarized.
func LogEvent(requestID, module, action, message string) {
	GetLogger().Info(message,
		zap.String("module", strings.ToLower(module)),
		zap.String("action", action),
		zap.String("request_id", strings.TrimSpace(requestID)),
	)
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
