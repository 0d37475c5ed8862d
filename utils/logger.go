package utils

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/avolkov/blogcms/config"
)

var (
	// Logger is the global structured logger.
	Logger *zap.Logger
	// Sugar is a sugared logger for convenience.
	Sugar *zap.SugaredLogger
)

// InitLogger builds a JSON zap logger writing to stdout and, when a log path
// is configured, to a lumberjack rolling file as well.
func InitLogger(cfg config.AppConfig) error {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	enc := zapcore.NewJSONEncoder(encCfg)

	level := logLevel(cfg.LogLevel)
	core := zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), level)

	if cfg.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
			return err
		}
		roller := &lumberjack.Logger{
			Filename:   cfg.LogPath,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   cfg.LogCompress,
		}
		core = zapcore.NewTee(core, zapcore.NewCore(enc, zapcore.AddSync(roller), level))
	}

	Logger = zap.New(core, zap.AddCaller())
	Sugar = Logger.Sugar()
	return nil
}

func logLevel(s string) zapcore.Level {
	if l, err := zapcore.ParseLevel(s); err == nil {
		return l
	}
	return zapcore.InfoLevel
}
