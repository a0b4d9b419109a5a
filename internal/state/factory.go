package state

import (
	"fmt"

	"giffer/internal/config"
)

func New(cfg config.StorageConfig, maxIDs int) (Store, error) {
	switch cfg.Type {
	case "", "json":
		return NewFileStore(cfg.Path, maxIDs)
	case "sqlite":
		return NewSQLiteStore(cfg.Path, maxIDs)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
