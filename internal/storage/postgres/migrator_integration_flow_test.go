package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMigrator_PostgresUpDownCycle(t *testing.T) {
	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	embedded, err := loadMigrationsFromFS(migrationsFS)
	require.NoError(t, err)
	latest := embedded[len(embedded)-1].Version

	// Откат всего, что могли оставить другие тесты.
	require.NoError(t, store.MigrateDown(ctx, len(embedded)))

	steps := []struct {
		name        string
		run         func() error
		wantVersion int64
		wantPending int
	}{
		{"clean", func() error { return nil }, 0, len(embedded)},
		{"up one", func() error { return store.MigrateUp(ctx, 1) }, 1, len(embedded) - 1},
		{"up rest", func() error { return store.MigrateUp(ctx, 0) }, latest, 0},
		{"up again is a no-op", func() error { return store.MigrateUp(ctx, 0) }, latest, 0},
		{"down two", func() error { return store.MigrateDown(ctx, 2) }, latest - 2, 2},
		{"down default step", func() error { return store.MigrateDown(ctx, 0) }, latest - 3, 3},
		{"down on empty schema", func() error { return store.MigrateDown(ctx, 1) }, 0, len(embedded)},
	}
	for _, step := range steps {
		require.NoError(t, step.run(), step.name)

		state, err := store.MigrationStatus(ctx)
		require.NoError(t, err, step.name)
		require.Equal(t, step.wantVersion, state.Version, step.name)
		require.Len(t, state.Pending, step.wantPending, step.name)
		require.Equal(t, len(embedded)-step.wantPending, state.Applied, step.name)
	}

	require.NoError(t, store.EnsureSchema(ctx))
}

func TestMigrator_NilStoreAndUnknownDirection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var nilStore *Store
	require.ErrorIs(t, nilStore.MigrateUp(ctx, 0), errStoreNotInitialized)
	require.ErrorIs(t, nilStore.MigrateDown(ctx, 1), errStoreNotInitialized)
	_, err := nilStore.MigrationStatus(ctx)
	require.ErrorIs(t, err, errStoreNotInitialized)

	store := openRawPostgresStoreForIntegrationTest(t)
	require.ErrorContains(t, store.migrate(ctx, migrationDirection("sideways"), 0), "unsupported migration direction")
}
