// Package testdb opens isolated in-memory SQLite databases for package tests.
//
// SQLite keeps decimal(12,2) columns as REAL, and arithmetic done in SQL such
// as balance + ? runs in float64. Compare stored amounts through Money.
package testdb

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/Agape/internal/pkg/database"
)

// New returns a migrated database private to t. The pool is capped at one
// connection, so concurrent transactions queue on it the way row locks
// serialize them on MySQL.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	cfg := database.Config()
	cfg.Logger = logger.Default.LogMode(logger.Silent)

	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(database.Models()...))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}
