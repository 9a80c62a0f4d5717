package bootstrap

import (
	"fmt"
	"os"

	"txserver/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger builds the process logger. Console output uses colored levels and
// readable timestamps; json output is for log shippers.
func InitLogger(cfg *config.Config) (*zap.Logger, *zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}

	var encoder zapcore.Encoder
	switch cfg.Log.Format {
	case "json":
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, logger.Sugar(), nil
}

// InitConfig loads the application configuration
func InitConfig(opts config.LoadOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// logConfig records the effective configuration without credentials
func logConfig(cfg *config.Config, sugar *zap.SugaredLogger) {
	mode := cfg.StartupMode
	if mode == "" {
		mode = config.StartupModeGraceful
	}
	sugar.Infow("Startup mode",
		"mode", string(mode),
		"description", func() string {
			if mode == config.StartupModeStrict {
				return "MongoDB URI validated at startup"
			}
			return "MongoDB URI passed through; connection errors are logged"
		}())

	sugar.Infow("Config loaded",
		"mongodb_uri", RedactURI(cfg.MongoDB.URI),
		"database", cfg.DatabaseName(),
		"listen_addr", cfg.ListenAddr(),
		"route_prefix", cfg.API.RoutePrefix,
		"admin_addr", cfg.Admin.Addr)
}
