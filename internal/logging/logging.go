// Package logging builds the zap logger shared by the server and the CLI.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/bsdash/internal/config"
)

// New returns a development logger when verbose, a production logger
// otherwise. When file logging is enabled, entries are also written as JSON
// to <directory>/<name>.log, rotated by size.
func New(name string, verbose bool, logCfg *config.LoggingConfig) (*zap.Logger, error) {
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
		if err := level.UnmarshalText([]byte(logCfg.Level)); err != nil {
			return nil, fmt.Errorf("parsing log level: %w", err)
		}
		zapConfig.Level = zap.NewAtomicLevelAt(level)
	}

	if logCfg == nil || !logCfg.File {
		return zapConfig.Build()
	}

	if err := os.MkdirAll(logCfg.Directory, 0755); err != nil {
		return nil, fmt.Errorf("creating logs directory: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logCfg.Directory, name+".log"),
		MaxSize:    logCfg.MaxSizeMB,
		MaxBackups: logCfg.MaxBackups,
		MaxAge:     logCfg.MaxAgeDays,
	}
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(rotator),
		zapConfig.Level,
	)

	return zapConfig.Build(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	}))
}
