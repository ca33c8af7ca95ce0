package sqlstore

import (
	"fmt"

	"canvas-gateway/internal/storage"
)

// Factory registers SQLite or PostgreSQL repositories with a storage.Registry.
type Factory struct {
	Type   string
	Sealer storage.Sealer
}

func (f *Factory) GetType() string {
	return f.Type
}

func (f *Factory) Create(config storage.StorageConfig) (storage.Repository, error) {
	switch c := config.(type) {
	case SQLiteConfig:
		return OpenSQLite(c, f.Sealer)
	case PostgresConfig:
		return OpenPostgres(c, f.Sealer)
	default:
		return nil, fmt.Errorf("invalid config type %T for %s storage", config, f.Type)
	}
}
