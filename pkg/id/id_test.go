package id

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsSortable(t *testing.T) {
	t.Parallel()
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	g := NewSeeded(42, func() time.Time { return fixed })

	ids := make([]string, 50)
	for i := range ids {
		ids[i] = g.New()
		require.True(t, Valid(ids[i]))
	}
	assert.True(t, sort.StringsAreSorted(ids), "same-millisecond IDs stay ordered")

	ts, err := Time(ids[0])
	require.NoError(t, err)
	assert.Equal(t, fixed, ts)
}

func TestPackageNew(t *testing.T) {
	t.Parallel()
	a, b := New(), New()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 26)
}

func TestShortAndValid(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "WXYZ", Short("01HABCDWXYZ", 4))
	assert.Equal(t, "ab", Short("ab", 4))
	assert.False(t, Valid("not-a-ulid"))

	_, err := Time("nope")
	assert.Error(t, err)
}
