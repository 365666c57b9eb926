// Package workcache implements the coordinator's bounded requestId →
// BlockTemplate index: capacity 12, eviction strictly by insertion
// recency. Reads never affect eviction order.
package workcache

import (
	"encoding/binary"
	"fmt"

	"github.com/VictoriaMetrics/fastcache"
	lru "github.com/hashicorp/golang-lru"
	"github.com/golang/snappy"

	"github.com/ironforge-pool/poolcoordinator/internal/header"
)

// Capacity is the number of epochs retained before the oldest insertion is
// evicted.
const Capacity = 12

// mirrorBytes is the off-heap fastcache shard size backing the durability
// mirror described in SPEC_FULL.md's domain stack. It is sized generously
// relative to Capacity since templates are small and compressed.
const mirrorBytes = 4 << 20

// Cache is the bounded work cache. The zero value is not usable; use New.
type Cache struct {
	lru    *lru.Cache
	mirror *fastcache.Cache
}

// New returns an empty Cache at the fixed Capacity.
func New() *Cache {
	l, err := lru.New(Capacity)
	if err != nil {
		// lru.New only errors on non-positive size; Capacity is a
		// compile-time positive constant, so this is unreachable.
		panic(fmt.Sprintf("workcache: %v", err))
	}
	return &Cache{
		lru:    l,
		mirror: fastcache.New(mirrorBytes),
	}
}

func mirrorKey(requestID uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], requestID)
	return b[:]
}

// Put inserts template under requestID, evicting the oldest insertion if the
// cache is already at Capacity. Writes never fail.
func (c *Cache) Put(requestID uint64, tmpl header.Header) {
	c.lru.Add(requestID, tmpl)

	if raw, err := marshalTemplate(tmpl); err == nil {
		c.mirror.Set(mirrorKey(requestID), snappy.Encode(nil, raw))
	}
}

// Get looks up requestID without affecting eviction recency (uses Peek, not
// Get, against the underlying LRU — a read must never count as a touch).
// Only the hot tier is consulted: the "at most 12, current epoch always
// present" invariant is measured against Get, so an evicted requestId must
// report None here even though Recover may still find it in the mirror.
func (c *Cache) Get(requestID uint64) (header.Header, bool) {
	if v, ok := c.lru.Peek(requestID); ok {
		return v.(header.Header), true
	}
	return header.Header{}, false
}

// Recover consults the off-heap snappy-compressed mirror for a requestId
// that has already aged out of the hot LRU tier. It is a durability aid for
// the audit trail and admin console, never for the submission-validation
// path: the submission pipeline's "unknown submission" / evicted-epoch
// disposition must see Get's hot-tier-only answer, not this one.
func (c *Cache) Recover(requestID uint64) (header.Header, bool) {
	raw, ok := c.mirror.HasGet(nil, mirrorKey(requestID))
	if !ok {
		return header.Header{}, false
	}
	plain, err := snappy.Decode(nil, raw)
	if err != nil {
		return header.Header{}, false
	}
	tmpl, err := unmarshalTemplate(plain)
	if err != nil {
		return header.Header{}, false
	}
	return tmpl, true
}

// Mutate replaces the cached template for requestID in place, keeping the
// same requestID (used by retarget, which rewrites the current epoch's
// header target/timestamp here and then republishes the template under a
// fresh requestId). A no-op if requestID is not present in the hot tier.
func (c *Cache) Mutate(requestID uint64, tmpl header.Header) {
	if _, ok := c.lru.Peek(requestID); !ok {
		return
	}
	c.Put(requestID, tmpl)
}

// Len reports the number of live entries in the hot tier, for tests
// asserting the "at most 12" invariant.
func (c *Cache) Len() int { return c.lru.Len() }
