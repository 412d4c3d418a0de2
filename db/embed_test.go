package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNames(t *testing.T) {
	names, err := MigrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "migrations/001_schema.sql", names[0])

	ddl, err := Migrations.ReadFile(names[0])
	require.NoError(t, err)
	for _, table := range []string{"products", "discounts", "orders"} {
		assert.Contains(t, string(ddl), "CREATE TABLE IF NOT EXISTS "+table)
	}
}
