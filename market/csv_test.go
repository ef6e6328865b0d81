package market

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBarsCSV(t *testing.T) {
	t.Parallel()

	in := `date,open,high,low,close,volume
2024-01-04,100,110,95,105,12000

2024-01-05,105,112,101,111,9000
`
	bars, err := ReadBarsCSV(strings.NewReader(in), "7203")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "7203", bars[0].Symbol)
	assert.Equal(t, day("2024-01-04"), bars[0].Date)
	assert.InDelta(t, 105.0, bars[0].Close, 1e-9)
	assert.InDelta(t, 9000.0, bars[1].Volume, 1e-9)
}

func TestReadBarsCSVErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{"short row", "2024-01-04,1,2,3\n"},
		{"bad date", "01/04/2024,1,2,3,4,5\n"},
		{"bad number", "2024-01-04,1,x,3,4,5\n"},
		{"out of order", "2024-01-05,1,2,3,4,5\n2024-01-04,1,2,3,4,5\n"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadBarsCSV(strings.NewReader(tc.in), "X")
			assert.Error(t, err)
		})
	}
}

func TestWriteBarsCSVRoundTrip(t *testing.T) {
	t.Parallel()
	want := seriesFrom("A", "2024-02-01", 10.5, 11.25, 12)

	var buf bytes.Buffer
	require.NoError(t, WriteBarsCSV(&buf, want))

	got, err := ReadBarsCSV(&buf, "A")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCSVProvider(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, WriteBarsCSV(&buf, seriesFrom("7203", "2024-01-01", 1, 2, 3)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "7203.csv"), buf.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "6758.csv"), []byte("2024-01-01,1,1,1,1,1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, NamesFile), []byte("7203,Toyota Motor\n"), 0o644))

	p := NewCSVProvider(dir)

	syms, err := p.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Instrument{{Symbol: "6758"}, {Symbol: "7203", Name: "Toyota Motor"}}, syms)

	bars, err := p.FetchPrices(ctx, "7203", day("2024-01-02"), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, Closes(bars))

	_, err = p.FetchPrices(ctx, "0000", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}
