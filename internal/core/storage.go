package core

import (
	"fmt"
	"os"

	"haccpcore/internal/infra/persistence/memory"
	"haccpcore/internal/infra/persistence/postgres"
	"haccpcore/internal/infra/persistence/sqlite"
	"haccpcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenStore selects a persistence backend using environment variables.
// Defaults to sqlite when unset.
//
//	HACCPCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	HACCPCORE_SQLITE_PATH: path to sqlite file (default ./haccpcore.db)
//	HACCPCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenStore() (domain.Store, error) {
	driver := os.Getenv("HACCPCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	return OpenStoreDriver(StorageDriver(driver), os.Getenv("HACCPCORE_SQLITE_PATH"), os.Getenv("HACCPCORE_POSTGRES_DSN"))
}

// OpenStoreDriver opens the named backend with explicit parameters.
func OpenStoreDriver(driver StorageDriver, sqlitePath, postgresDSN string) (domain.Store, error) {
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(sqlitePath)
	case StoragePostgres:
		return postgres.NewStore(postgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
