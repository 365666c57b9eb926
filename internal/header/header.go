// Package header implements the canonical byte encoding of a mineable block
// header and its BLAKE3 digest. Encoding is deterministic and injective over
// well-formed headers: two headers that differ in any inspected field always
// produce different byte images.
package header

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"lukechampine.com/blake3"
)

// Field widths of the canonical encoding. target and graffiti are fixed at
// 32 bytes per spec.md's data model; previousBlockHash and randomness are
// chain/miner-supplied hex of unspecified length, so they are encoded with
// an explicit 4-byte big-endian length prefix to keep the overall image
// injective despite the variable widths.
const (
	TargetSize   = 32
	GraffitiSize = 32
)

// MalformedHeader reports a header field that violates its length or
// encoding contract (non-hex, wrong byte width).
type MalformedHeader struct {
	Field string
	Err   error
}

func (e *MalformedHeader) Error() string {
	return fmt.Sprintf("header: malformed field %q: %v", e.Field, e.Err)
}
func (e *MalformedHeader) Unwrap() error { return e.Err }

// Header is the mineable portion of a BlockTemplate. Additional opaque
// fields a real chain's header carries are preserved via Extra and must
// round-trip unchanged; the core never inspects them.
type Header struct {
	PreviousBlockHash string          `json:"previousBlockHash"`
	Target            string          `json:"target"`
	Timestamp         int64           `json:"timestamp"`
	Randomness        string          `json:"randomness"`
	Graffiti          string          `json:"graffiti"`
	Extra             json.RawMessage `json:"-"`
}

// Clone returns a shallow, independent copy of h, safe to mutate (miner
// graffiti/randomness composition, retarget) without touching the original.
func (h Header) Clone() Header {
	c := h
	if h.Extra != nil {
		c.Extra = append(json.RawMessage(nil), h.Extra...)
	}
	return c
}

func decodeHex(field, s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, &MalformedHeader{Field: field, Err: err}
	}
	return b, nil
}

func decodeFixed(field, s string, want int) ([]byte, error) {
	b, err := decodeHex(field, s)
	if err != nil {
		return nil, err
	}
	if len(b) != want {
		return nil, &MalformedHeader{Field: field, Err: fmt.Errorf("want %d bytes, got %d", want, len(b))}
	}
	return b, nil
}

func appendPrefixed(buf []byte, b []byte) []byte {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	buf = append(buf, n[:]...)
	return append(buf, b...)
}

// SerializeMineableHeader produces the canonical byte image over which
// proof-of-work is measured: previousBlockHash and randomness (variable
// length) are length-prefixed; target and graffiti (fixed 32 bytes) and
// timestamp are appended directly.
func SerializeMineableHeader(h Header) ([]byte, error) {
	prev, err := decodeHex("previousBlockHash", h.PreviousBlockHash)
	if err != nil {
		return nil, err
	}
	tgt, err := decodeFixed("target", h.Target, TargetSize)
	if err != nil {
		return nil, err
	}
	graffiti, err := decodeFixed("graffiti", h.Graffiti, GraffitiSize)
	if err != nil {
		return nil, err
	}
	randomness, err := decodeHex("randomness", h.Randomness)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, len(prev)+len(tgt)+len(graffiti)+len(randomness)+16)
	buf = appendPrefixed(buf, prev)
	buf = append(buf, tgt...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(h.Timestamp))
	buf = append(buf, ts[:]...)
	buf = append(buf, graffiti...)
	buf = appendPrefixed(buf, randomness)
	return buf, nil
}

// Hash returns the BLAKE3 digest of bytes, interpreted as a big-endian
// unsigned 256-bit integer for comparison with targets.
func Hash(b []byte) [32]byte {
	return blake3.Sum256(b)
}

// Equal reports whether two serialized headers are byte-identical.
func Equal(a, b []byte) bool { return bytes.Equal(a, b) }

// DisplayHash renders digest the way chain explorers present block hashes:
// byte-reversed hex, via chainhash.Hash's String method, rather than the
// big-endian hex used for wire comparison against a Target. For log lines
// and the status API only; never compared against a Target.
func DisplayHash(digest [32]byte) string {
	return chainhash.Hash(digest).String()
}
