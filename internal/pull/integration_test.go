//go:build integration

package pull_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robertjbass/spindb/internal/engine/pgfamily"
	"github.com/robertjbass/spindb/internal/testutil"
)

// TestDumpFromConnectionStringAgainstRealPostgres exercises the dump
// half of the Pull Pipeline (§4.10/§4.9) against a real Postgres server,
// the same shape of "remote source" a spindb user points --source at.
func TestDumpFromConnectionStringAgainstRealPostgres(t *testing.T) {
	ctx := context.Background()

	pg, err := testutil.StartPostgresContainer(ctx)
	require.NoError(t, err)
	defer pg.Stop(ctx)

	a := pgfamily.NewPostgreSQL()

	out, err := os.CreateTemp(t.TempDir(), "dump-*.sql")
	require.NoError(t, err)
	require.NoError(t, out.Close())

	require.NoError(t, a.DumpFromConnectionString(ctx, pg.ConnectionString(), out.Name()))

	info, err := os.Stat(out.Name())
	require.NoError(t, err)
	require.NotZero(t, info.Size())
}
