package core

import (
	"fmt"
	"os"

	"drugsecure/internal/infra/persistence/memory"
	"drugsecure/internal/infra/persistence/postgres"
	"drugsecure/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and parameterises a backend.
type StorageConfig struct {
	Driver      StorageDriver `yaml:"driver"`
	SQLitePath  string        `yaml:"sqlite_path"`
	PostgresDSN string        `yaml:"postgres_dsn"`
}

// StorageConfigFromEnv reads the storage environment variables.
//
//	DRUGSECURE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	DRUGSECURE_SQLITE_PATH: path to sqlite file (default ./drugsecure.db)
//	DRUGSECURE_POSTGRES_DSN: postgres DSN when driver=postgres
func StorageConfigFromEnv() StorageConfig {
	return StorageConfig{
		Driver:      StorageDriver(os.Getenv("DRUGSECURE_STORAGE_DRIVER")),
		SQLitePath:  os.Getenv("DRUGSECURE_SQLITE_PATH"),
		PostgresDSN: os.Getenv("DRUGSECURE_POSTGRES_DSN"),
	}
}

// OpenPersistentStore selects a backend using environment variables.
func OpenPersistentStore(engine *RulesEngine) (PersistentStore, error) {
	return OpenPersistentStoreWith(StorageConfigFromEnv(), engine)
}

// OpenPersistentStoreWith opens the backend described by cfg. Defaults to
// sqlite when the driver is unset.
func OpenPersistentStoreWith(cfg StorageConfig, engine *RulesEngine) (PersistentStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath, engine)
	case StoragePostgres:
		return postgres.NewStore(cfg.PostgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
