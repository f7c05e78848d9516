package bitfield_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JohnDoee/autotorrent/pkg/bitfield"
)

func TestHasSetClear(t *testing.T) {
	b := bitfield.NewSize(10)

	for i := 0; i < b.Len(); i++ {
		require.False(t, b.Has(i), "bit %d should start clear", i)
	}

	b.Set(0)
	require.True(t, b.Has(0), "bit 0 must be settable (regression: teacher rejected atByte==0)")

	last := b.Len() - 1
	b.Set(last)
	require.True(t, b.Has(last))

	b.Clear(0)
	require.False(t, b.Has(0))
	require.True(t, b.Has(last))
}

func TestOutOfRangeIsSafe(t *testing.T) {
	b := bitfield.NewSize(8)
	require.False(t, b.Has(-1))
	require.False(t, b.Has(100))
	b.Set(100) // must not panic
	b.Clear(-1)
}

func TestAll(t *testing.T) {
	b := bitfield.NewSize(12)
	require.False(t, b.All())
	for i := 0; i < b.Len(); i++ {
		b.Set(i)
	}
	require.True(t, b.All())
}
