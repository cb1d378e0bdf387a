package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/scenario-risk/internal/config"
)

func TestNewDBRejectsBadConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewDB(ctx, &config.DatabaseConfig{
		Host:    "127.0.0.1",
		Port:    1,
		Name:    "none",
		User:    "none",
		SSLMode: "bogus",
	})
	assert.Error(t, err)
}

func TestTxFromContextEmpty(t *testing.T) {
	_, ok := TxFromContext(context.Background())
	assert.False(t, ok)
}

func TestMigrateAndTransaction(t *testing.T) {
	db := SetupTestDB(t)
	defer TeardownTestDB(t, db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.HealthCheck(ctx))

	rollback := errors.New("rollback")
	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		_, ok := TxFromContext(txCtx)
		assert.True(t, ok)
		return rollback
	})
	assert.ErrorIs(t, err, rollback)
}
