package app

import (
	"fmt"

	"canvas-gateway/internal/common/logging"
	"canvas-gateway/internal/crypto"
	"canvas-gateway/internal/storage"
	"canvas-gateway/internal/storage/memory"
	"canvas-gateway/internal/storage/sqlstore"
)

func (app *App) initializeStorage() error {
	cipher, err := crypto.NewTokenCipher(app.Config.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize token encryption: %w", err)
	}

	registry := storage.NewRegistry()
	registry.Register(&sqlstore.Factory{Type: "sqlite", Sealer: cipher})
	registry.Register(&sqlstore.Factory{Type: "postgres", Sealer: cipher}, "postgresql")
	registry.Register(memory.Factory{})

	storageType, ok := registry.Resolve(app.Config.DatabaseType)
	if !ok {
		return fmt.Errorf("unsupported database type %q (available: %v)", app.Config.DatabaseType, registry.Types())
	}

	var storageConfig storage.StorageConfig
	switch storageType {
	case "postgres":
		app.Logger.Info("Database: PostgreSQL",
			logging.String("host", app.Config.PostgresHost),
			logging.String("port", app.Config.PostgresPort),
			logging.String("database", app.Config.PostgresDB),
		)
		storageConfig = sqlstore.PostgresConfig{
			Host:     app.Config.PostgresHost,
			Port:     app.Config.PostgresPort,
			Database: app.Config.PostgresDB,
			Username: app.Config.PostgresUser,
			Password: app.Config.PostgresPassword,
			SSLMode:  app.Config.PostgresSSLMode,
		}
	case "memory":
		app.Logger.Warn("Database: in-memory, connections are lost on restart")
	default:
		dbPath := app.Config.DatabasePath
		if dbPath == "" {
			dbPath = "./canvas_gateway.db"
		}
		app.Logger.Info("Database: SQLite", logging.String("path", dbPath))
		storageConfig = sqlstore.SQLiteConfig{Path: dbPath}
	}

	store, err := registry.Create(storageType, storageConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.Storage = store
	return nil
}
