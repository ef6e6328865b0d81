package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestExportCSV(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "out")

	paths, err := ExportCSV(dir, sampleSession("s1", "alice"))
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "s1-trades.csv"), paths[0])

	trades := readCSV(t, paths[0])
	require.Len(t, trades, 4)
	assert.Equal(t, tradeHeader, trades[0])
	assert.Equal(t, []string{
		"s1-t1", "s1-p1", "2024-03-11", "buy", "false", "1000.00", "100",
		"100.00", "50.00", "100150.00", "899850.00", "breakout",
	}, trades[1])
	assert.Equal(t, "true", trades[3][4])

	violations := readCSV(t, paths[1])
	require.Len(t, violations, 2)
	assert.Equal(t, violationHeader, violations[0])
	assert.Equal(t, []string{
		"s1-v1", "2024-03-14T00:00:00Z", "s1-p2", "position_size", "warning", "position is 23% of capital",
	}, violations[1])
}

func TestExportCSVEmptySession(t *testing.T) {
	t.Parallel()
	s := sampleSession("s1", "alice")
	s.Trades, s.Violations = nil, nil

	paths, err := ExportCSV(t.TempDir(), s)
	require.NoError(t, err)
	assert.Len(t, readCSV(t, paths[0]), 1)
	assert.Len(t, readCSV(t, paths[1]), 1)
}
