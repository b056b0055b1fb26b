package app

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/tastygex/internal/config"
)

// NewLogger builds the console logger and, when file logging is enabled, tees
// JSON lines into a rotating file named after the binary.
func NewLogger(name string, verbose bool, logCfg *config.LoggingConfig) (*zap.Logger, error) {
	var zapConfig zap.Config
	if verbose {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.DisableStacktrace = true
	}

	// Set log level from config
	if logCfg != nil && logCfg.Level != "" && !verbose {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(logCfg.Level)); err == nil {
			zapConfig.Level = zap.NewAtomicLevelAt(level)
		}
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	if logCfg == nil || !logCfg.Enabled {
		return logger, nil
	}

	if err := os.MkdirAll(logCfg.Directory, 0755); err != nil {
		return nil, fmt.Errorf("creating logs directory: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logCfg.Directory, name+".log"),
		MaxSize:    logCfg.MaxSizeMB,
		MaxAge:     logCfg.MaxAgeDays,
		MaxBackups: logCfg.MaxBackups,
		Compress:   true,
	}
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(rotator),
		zapConfig.Level,
	)

	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	})), nil
}
