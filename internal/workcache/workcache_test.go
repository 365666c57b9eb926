package workcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ironforge-pool/poolcoordinator/internal/header"
)

func tmpl(tag string) header.Header {
	return header.Header{
		PreviousBlockHash: "aa",
		Target:            "ff",
		Timestamp:         1,
		Randomness:        "01",
		Graffiti:          tag,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	c := New()
	c.Put(1, tmpl("g1"))
	got, ok := c.Get(1)
	require.True(t, ok)
	require.Equal(t, "g1", got.Graffiti)
}

func TestGetMissingReturnsFalse(t *testing.T) {
	c := New()
	_, ok := c.Get(999)
	require.False(t, ok)
}

func TestEvictionByInsertionOrderNotReadAccess(t *testing.T) {
	c := New()
	for i := uint64(0); i < Capacity; i++ {
		c.Put(i, tmpl("x"))
	}
	require.Equal(t, Capacity, c.Len())

	// touch the oldest entry repeatedly; reads must not protect it from
	// eviction.
	for i := 0; i < 5; i++ {
		_, ok := c.Get(0)
		require.True(t, ok)
	}

	c.Put(Capacity, tmpl("new"))
	require.Equal(t, Capacity, c.Len())

	_, ok := c.Get(0)
	require.False(t, ok, "oldest insertion must be evicted despite repeated reads")

	_, ok = c.Get(Capacity)
	require.True(t, ok)
}

func TestMutateInPlaceKeepsSameID(t *testing.T) {
	c := New()
	c.Put(5, tmpl("before"))
	c.Mutate(5, tmpl("after"))
	got, ok := c.Get(5)
	require.True(t, ok)
	require.Equal(t, "after", got.Graffiti)
	require.Equal(t, 1, c.Len()) // entry count unaffected by mutate
}

func TestMutateMissingIsNoOp(t *testing.T) {
	c := New()
	c.Mutate(42, tmpl("ghost"))
	_, ok := c.Get(42)
	require.False(t, ok)
}
