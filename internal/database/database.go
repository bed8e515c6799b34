// Package database owns the SQLite connection and the schema.
package database

import (
	"fmt"
	"log/slog"

	"github.com/karloscodes/cartridge/cache"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"profilehub/internal/audit"
	"profilehub/internal/config"
	"profilehub/internal/connections"
	"profilehub/internal/profiles"
	"profilehub/internal/users"
)

// Models lists every table the application owns, in migration order.
func Models() []any {
	return []any{
		&cache.CacheRecord{},
		&users.User{},
		&profiles.Profile{},
		&connections.Connection{},
		&connections.Request{},
		&audit.Event{},
	}
}

// DBManager is a sqlite.Manager that also knows the profilehub schema.
type DBManager struct {
	*sqlite.Manager
	logger *slog.Logger
}

// NewDBManager opens the database file named by cfg in WAL mode with immediate transactions.
func NewDBManager(cfg *config.Config, logger *slog.Logger) *DBManager {
	return &DBManager{
		Manager: sqlite.NewManager(sqlite.Config{
			Path:         cfg.DatabaseName,
			MaxOpenConns: cfg.GetMaxOpenConns(),
			MaxIdleConns: cfg.GetMaxIdleConns(),
			Logger:       logger,
			EnableWAL:    true,
			TxImmediate:  true,
			BusyTimeout:  5000,
		}),
		logger: logger,
	}
}

func (dm *DBManager) Init() error {
	if _, err := dm.Manager.Connect(); err != nil {
		return fmt.Errorf("connect sqlite: %w", err)
	}
	return nil
}

// MigrateDatabase brings every table in Models up to date in a single transaction.
func (dm *DBManager) MigrateDatabase() error {
	db := dm.GetConnection()
	if db == nil {
		return gorm.ErrInvalidDB
	}

	models := Models()
	if err := db.Transaction(func(tx *gorm.DB) error {
		return tx.AutoMigrate(models...)
	}); err != nil {
		dm.logger.Error("Schema migration failed", slog.Any("error", err))
		return err
	}

	// Fold the migration into the main file so backups taken right after start are consistent.
	if err := dm.CheckpointWAL("FULL"); err != nil {
		dm.logger.Warn("WAL checkpoint after migration failed", slog.Any("error", err))
	}

	dm.logger.Info("Schema migrated", slog.Int("tables", len(models)))
	return nil
}

// TableCounts returns the number of rows per owned table, keyed by table name.
func TableCounts(db *gorm.DB) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, model := range Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, err
		}
		var n int64
		if err := db.Model(model).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("count %s: %w", stmt.Schema.Table, err)
		}
		counts[stmt.Schema.Table] = n
	}
	return counts, nil
}
