package header

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleHeader() Header {
	return Header{
		PreviousBlockHash: hex.EncodeToString(make([]byte, 32)),
		Target:            "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
		Timestamp:         1700000000000,
		Randomness:        "deadbeef",
		Graffiti:          hex.EncodeToString([]byte("pool-operator-graffiti-tag-32byt")),
	}
}

func TestSerializeMineableHeaderDeterministic(t *testing.T) {
	h := sampleHeader()
	a, err := SerializeMineableHeader(h)
	require.NoError(t, err)
	b, err := SerializeMineableHeader(h)
	require.NoError(t, err)
	require.True(t, Equal(a, b))
}

func TestSerializeMineableHeaderInjective(t *testing.T) {
	base := sampleHeader()
	mutated := base
	mutated.Randomness = "deadbeef00"

	a, err := SerializeMineableHeader(base)
	require.NoError(t, err)
	b, err := SerializeMineableHeader(mutated)
	require.NoError(t, err)
	require.False(t, Equal(a, b))
}

func TestSerializeMineableHeaderRejectsBadHex(t *testing.T) {
	h := sampleHeader()
	h.Target = "not-hex"
	_, err := SerializeMineableHeader(h)
	require.Error(t, err)
	var malformed *MalformedHeader
	require.True(t, errors.As(err, &malformed))
	require.Equal(t, "target", malformed.Field)
}

func TestSerializeMineableHeaderRejectsWrongWidth(t *testing.T) {
	h := sampleHeader()
	h.Graffiti = "ab"
	_, err := SerializeMineableHeader(h)
	require.Error(t, err)
	var malformed *MalformedHeader
	require.True(t, errors.As(err, &malformed))
	require.Equal(t, "graffiti", malformed.Field)
}

func TestHashStable(t *testing.T) {
	h := sampleHeader()
	b, err := SerializeMineableHeader(h)
	require.NoError(t, err)
	d1 := Hash(b)
	d2 := Hash(b)
	require.Equal(t, d1, d2)
}

func TestCloneIndependentExtra(t *testing.T) {
	h := sampleHeader()
	h.Extra = []byte(`{"sequence":5}`)
	c := h.Clone()
	c.Extra[2] = 'X'
	require.NotEqual(t, string(h.Extra), string(c.Extra))
}
