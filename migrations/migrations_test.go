package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpReturnsOrderedMigrations(t *testing.T) {
	up, err := Up()
	require.NoError(t, err)
	require.NotEmpty(t, up)
	assert.Contains(t, up[0], "CREATE TABLE IF NOT EXISTS simulation_results")
}
