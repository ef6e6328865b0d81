package market

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParquetProviderRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()

	want := seriesFrom("7203", "2024-01-01", 100, 101.5, 99.25, 103)
	require.NoError(t, WriteBarsParquet(filepath.Join(dir, "7203.parquet"), want))

	p := NewParquetProvider(dir)

	syms, err := p.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Instrument{{Symbol: "7203"}}, syms)

	got, err := p.FetchPrices(ctx, "7203", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = p.FetchPrices(ctx, "6758", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}
