package storage

import (
	"context"
	"fmt"

	"github.com/dgellow/jobfront/internal/config"
	"github.com/dgellow/jobfront/internal/crypto"
)

// New opens the storage backend selected by cfg
func New(ctx context.Context, cfg config.StorageConfig, encryptor crypto.Encryptor) (Storage, error) {
	switch cfg.Kind {
	case config.StorageMemory, "":
		return NewMemoryStorage(), nil
	case config.StorageFirestore:
		return NewFirestoreStorage(ctx, cfg.GCPProject, cfg.FirestoreDatabase, cfg.FirestoreCollection, encryptor)
	case config.StoragePostgres:
		return NewPostgresStorage(ctx, string(cfg.DSN), encryptor)
	case config.StorageSQLite:
		return NewSQLiteStorage(ctx, cfg.Path, encryptor)
	default:
		return nil, fmt.Errorf("unknown storage kind: %s", cfg.Kind)
	}
}
