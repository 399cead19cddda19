package database

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/todo-auth/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DBConfig{User: "app", Pass: "s3cret", Host: "db", Port: "3307", Name: "todo"})

	assert.Contains(t, dsn, "app:s3cret@tcp(db:3307)/todo?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestMigrationsEmbedded(t *testing.T) {
	b, err := fs.ReadFile(migrations, "migrations/00001_create_users.sql")
	require.NoError(t, err)
	assert.Contains(t, string(b), "-- +goose Up")
	assert.Contains(t, string(b), "UNIQUE KEY uq_users_email (email)")
}

func TestMigrate_UsesEmbeddedDir(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })

	var gotDir string
	gooseUp = func(ctx context.Context, _ *sql.DB, dir string) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.Equal(t, "migrations", gotDir)

	gooseUp = func(context.Context, *sql.DB, string) error { return errors.New("boom") }
	assert.EqualError(t, Migrate(context.Background(), db), "boom")
}
