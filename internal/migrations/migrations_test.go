package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/gig?sslmode=disable", DatabaseURL("postgres://u:p@localhost:5432/gig?sslmode=disable"))
	assert.Equal(t, "pgx5://u@db/gig", DatabaseURL("postgresql://u@db/gig"))
	assert.Equal(t, "pgx5://already", DatabaseURL("pgx5://already"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(files, "sql/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(files, "sql/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}
