package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDialectorFor(t *testing.T) {
	asserter := assert.New(t)

	d, single, err := dialectorFor("sqlite:///tmp/autoflow.db")
	if asserter.NoError(err) {
		asserter.Equal("sqlite", d.Name())
		asserter.True(single)
	}

	d, single, err = dialectorFor("mysql://root:pw@127.0.0.1:3306/autoflow")
	if asserter.NoError(err) {
		asserter.Equal("mysql", d.Name())
		asserter.False(single)
	}

	d, _, err = dialectorFor("postgres://u:p@localhost:5432/autoflow?sslmode=disable")
	if asserter.NoError(err) {
		asserter.Equal("postgres", d.Name())
	}

	_, _, err = dialectorFor("oracle://x")
	asserter.Error(err)
}

func TestOpenAndMigrate(t *testing.T) {
	asserter := assert.New(t)

	conn, err := Open(&Config{Connection: "sqlite://" + t.TempDir() + "/migrate.db"})
	if asserter.NoError(err) {
		asserter.NoError(Migrate(conn))
		// idempotent
		asserter.NoError(Migrate(conn))
		for _, table := range []string{"automations", "automation_runs", "service_accounts", "users", "records"} {
			asserter.True(conn.Migrator().HasTable(table), table)
		}
	}
}
