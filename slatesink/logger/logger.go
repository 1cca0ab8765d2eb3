package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _logger *zap.Logger

// Init builds the process logger. An unparsable level falls back to info.
func Init(level string) {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	_logger, err = cfg.Build()
	if err != nil {
		panic(err)
	}
}

func Sync() {
	if _logger != nil {
		_ = _logger.Sync()
	}
}

func Error(message string, field ...zap.Field) {
	_logger.Error(message, field...)
}

func Warn(message string, field ...zap.Field) {
	_logger.Warn(message, field...)
}

func Info(message string, field ...zap.Field) {
	_logger.Info(message, field...)
}
