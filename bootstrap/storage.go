package bootstrap

import (
	"txserver/config"
	"txserver/storage"

	"go.uber.org/zap"
)

// InitStore prepares the MongoDB connector. Nothing is dialed until Connect.
func InitStore(cfg *config.Config, sugar *zap.SugaredLogger) *storage.Connector {
	uri := cfg.MongoDB.URI
	return storage.NewConnector(storage.ConnectorConfig{
		URI:         uri,
		Database:    cfg.DatabaseName(),
		Timeout:     cfg.MongoDB.ConnectTimeout,
		MaxPoolSize: cfg.MongoDB.MaxPoolSize,
		Describe: func(err error) string {
			return ClassifyConnectionError(err, uri)
		},
	}, sugar)
}
