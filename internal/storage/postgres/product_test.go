//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/kart-voice/internal/domain/product"
	"github.com/xenking/kart-voice/internal/fixture"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.Run(ctx, "postgres:17-alpine",
		testcontainers.WithExposedPorts("5432/tcp"),
		testcontainers.WithEnv(map[string]string{
			"POSTGRES_USER":     "kart",
			"POSTGRES_PASSWORD": "kart",
			"POSTGRES_DB":       "kart",
		}),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://kart:kart@%s:%s/kart?sslmode=disable", host, port.Port())
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()

	pool, err := NewPool(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, pool))

	repo := NewProductRepository(pool)

	empty, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	seed, err := fixture.Load()
	require.NoError(t, err)
	want, err := seed.List(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(ctx, want))
	got, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	t.Run("Upsert updates in place", func(t *testing.T) {
		changed := want[3]
		changed.InStock = true
		changed.Price = 39
		changed.Collections = []string{"Sale"}
		require.NoError(t, repo.Upsert(ctx, []product.Product{changed}))

		p, err := repo.Get(ctx, changed.ID)
		require.NoError(t, err)
		assert.Equal(t, changed, p)

		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, len(want))
		assert.Equal(t, changed.ID, all[3].ID)
	})

	t.Run("Get missing", func(t *testing.T) {
		_, err := repo.Get(ctx, "nope")
		require.ErrorIs(t, err, product.ErrNotFound)
	})
}
