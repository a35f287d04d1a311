// Package dbtest opens migrated sqlite databases for package tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"autoflow/app/db"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func New(t testing.TB) *gorm.DB {
	t.Helper()
	conn, err := db.Open(&db.Config{
		Connection: "sqlite://" + filepath.ToSlash(filepath.Join(t.TempDir(), "autoflow.db")),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}
