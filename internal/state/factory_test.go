package state

import "giffer/internal/config"

func storageCfg(storageType, path string) config.StorageConfig {
	return config.StorageConfig{Type: storageType, Path: path}
}
