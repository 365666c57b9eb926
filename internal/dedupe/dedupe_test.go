package dedupe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotDuplicateBeforeRecord(t *testing.T) {
	d := New()
	require.False(t, d.IsDuplicate("client-a", "nonce-1"))
}

func TestDuplicateAfterRecord(t *testing.T) {
	d := New()
	d.Record("client-a", "nonce-1")
	require.True(t, d.IsDuplicate("client-a", "nonce-1"))
}

func TestDistinctNoncesNotDuplicate(t *testing.T) {
	d := New()
	d.Record("client-a", "nonce-1")
	require.False(t, d.IsDuplicate("client-a", "nonce-2"))
}

func TestDistinctClientsIndependent(t *testing.T) {
	d := New()
	d.Record("client-a", "nonce-1")
	require.False(t, d.IsDuplicate("client-b", "nonce-1"))
}

func TestResetClearsEverything(t *testing.T) {
	d := New()
	d.Record("client-a", "nonce-1")
	d.Reset()
	require.False(t, d.IsDuplicate("client-a", "nonce-1"))
}
