// Package dedupe implements the coordinator's per-epoch submission deduper:
// for each client, remembers which (randomness) nonces it has already
// submitted, so the same nonce can earn at most one share credit and at
// most one upstream block submission within an epoch.
package dedupe

import (
	"sync"

	mapset "github.com/deckarep/golang-set"
	"github.com/holiman/bloomfilter/v2"
)

// bloomM (filter size in bits) and bloomK (hash functions) size the bloom
// filter; any hit still falls through to the exact set below, so a false
// positive here can never
// manufacture a phantom duplicate — it only costs an extra exact-set probe.
const (
	bloomM = 1 << 16
	bloomK = 4
)

// Deduper tracks, per clientId, the sequence of nonces already submitted
// for the current epoch. Reset clears the entire mapping, as happens on
// every new published epoch.
type Deduper struct {
	mu    sync.Mutex
	exact map[string]mapset.Set
	bloom *bloomfilter.Filter
}

// New returns an empty Deduper.
func New() *Deduper {
	f, err := bloomfilter.New(bloomM, bloomK)
	if err != nil {
		// bloomM/bloomK are fixed positive compile-time constants.
		panic(err)
	}
	return &Deduper{
		exact: make(map[string]mapset.Set),
		bloom: f,
	}
}

// bloomHash computes the FNV-1a sum of a (clientID, nonce) pair, fed
// straight to the filter's integer API (AddHash/ContainsHash) rather than
// wrapping it in a hash.Hash64 adapter.
func bloomHash(clientID, nonce string) uint64 {
	var h uint64 = 1469598103934665603 // FNV-1a offset basis
	key := clientID + "\x00" + nonce
	for i := 0; i < len(key); i++ {
		h ^= uint64(key[i])
		h *= 1099511628211 // FNV-1a prime
	}
	return h
}

// IsDuplicate reports whether nonce has already been recorded for clientID
// in the current epoch.
func (d *Deduper) IsDuplicate(clientID, nonce string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.bloom.ContainsHash(bloomHash(clientID, nonce)) {
		return false
	}
	set, ok := d.exact[clientID]
	if !ok {
		return false
	}
	return set.Contains(nonce)
}

// Record appends nonce to clientID's submitted sequence, creating it if
// absent.
func (d *Deduper) Record(clientID, nonce string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.exact[clientID]
	if !ok {
		set = mapset.NewThreadUnsafeSet()
		d.exact[clientID] = set
	}
	set.Add(nonce)
	d.bloom.AddHash(bloomHash(clientID, nonce))
}

// Reset clears the entire mapping, as happens on every new published epoch.
func (d *Deduper) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.exact = make(map[string]mapset.Set)
	f, err := bloomfilter.New(bloomM, bloomK)
	if err != nil {
		panic(err)
	}
	d.bloom = f
}
