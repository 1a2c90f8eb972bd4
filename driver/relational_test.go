package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phraseql/phraseql/domain/model"
)

func newTestStore(t *testing.T) *Relational {
	t.Helper()

	store, err := OpenRelational(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func carsPlan() *model.RelationalPlan {
	return &model.RelationalPlan{
		Table:     "cars",
		CreateSQL: `CREATE TABLE IF NOT EXISTS "cars" ("id" INTEGER PRIMARY KEY, "make" TEXT, "price" REAL)`,
		InsertSQL: `INSERT INTO "cars" VALUES (?, ?, ?)`,
		Rows: [][]any{
			{int64(1), "toyota", 20000.5},
			{int64(2), "honda", 22000.0},
			{int64(3), "tesla", nil},
		},
	}
}

func TestRelationalMaterializeAndSelect(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Materialize(ctx, carsPlan()))

	rows, err := store.Select(ctx, "SELECT * FROM cars WHERE price > 21000")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "honda", rows[0]["make"])
	assert.Equal(t, int64(2), rows[0]["id"])

	t.Run("null survives the round trip", func(t *testing.T) {
		rows, err := store.Select(ctx, "SELECT * FROM cars WHERE price IS NULL")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "tesla", rows[0]["make"])
		assert.Nil(t, rows[0]["price"])
	})

	t.Run("aggregate query", func(t *testing.T) {
		rows, err := store.Select(ctx, "SELECT make, COUNT(*) FROM cars GROUP BY make")
		require.NoError(t, err)
		assert.Len(t, rows, 3)
	})
}

func TestRelationalMaterializeRollsBackOnError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	plan := carsPlan()
	// second row violates the primary key, so the whole batch must abort
	plan.Rows = [][]any{
		{int64(1), "toyota", 20000.5},
		{int64(1), "honda", 22000.0},
	}
	require.Error(t, store.Materialize(ctx, plan))

	datasets, err := store.ListTables(ctx)
	require.NoError(t, err)
	assert.Empty(t, datasets, "failed materialization must leave no table behind")
}

func TestRelationalListTables(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Materialize(ctx, carsPlan()))

	datasets, err := store.ListTables(ctx)
	require.NoError(t, err)
	require.Len(t, datasets, 1)

	dataset := datasets[0]
	assert.Equal(t, "cars", dataset.Name)
	assert.Equal(t, model.BackendRelational, dataset.Backend)
	assert.Equal(t, 3, dataset.Rows)

	want := []model.ColumnDescriptor{
		{Name: "id", Type: model.ColumnTypeInteger, Nullable: false},
		{Name: "make", Type: model.ColumnTypeText, Nullable: true},
		{Name: "price", Type: model.ColumnTypeFloat, Nullable: true},
	}
	assert.Equal(t, want, dataset.Columns)
}

func TestColumnTypeFromDeclared(t *testing.T) {
	t.Parallel()

	tests := []struct {
		declared string
		want     model.ColumnType
	}{
		{declared: "INTEGER", want: model.ColumnTypeInteger},
		{declared: "integer", want: model.ColumnTypeInteger},
		{declared: "REAL", want: model.ColumnTypeFloat},
		{declared: "BOOLEAN", want: model.ColumnTypeBoolean},
		{declared: "TEXT", want: model.ColumnTypeText},
		{declared: "VARCHAR(20)", want: model.ColumnTypeText},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, columnTypeFromDeclared(tt.declared), "declared %q", tt.declared)
	}
}
