package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/dropship/backend/internal/infrastructure/config"
	"github.com/dropship/backend/internal/infrastructure/persistence/models"
)

func newPingMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	return &Database{DB: gormDB}, mock
}

func TestNewDatabase_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:       "sqlite",
		SQLitePath:   filepath.Join(t.TempDir(), "shop.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     "silent",
	}

	db, err := NewDatabase(cfg, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	migrator := db.DB.Migrator()
	for _, m := range []any{&models.ProductModel{}, &models.VariantModel{}, &models.OrderModel{}, &models.OrderItemModel{}} {
		assert.True(t, migrator.HasTable(m), "%T table missing", m)
	}
	assert.NoError(t, db.Ping(context.Background()))
}

func TestDatabase_Ping(t *testing.T) {
	t.Run("successful ping", func(t *testing.T) {
		db, mock := newPingMockDatabase(t)
		mock.ExpectPing()

		assert.NoError(t, db.Ping(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ping failure is returned", func(t *testing.T) {
		db, mock := newPingMockDatabase(t)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		err := db.Ping(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestDatabase_Close(t *testing.T) {
	db, mock := newPingMockDatabase(t)
	mock.ExpectClose()

	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_PingAfterClose(t *testing.T) {
	db, err := NewDatabase(&config.DatabaseConfig{
		Driver:       "sqlite",
		SQLitePath:   filepath.Join(t.TempDir(), "closed.db"),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, db.Close())
	assert.Error(t, db.Ping(context.Background()))
}
