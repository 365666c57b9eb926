// Package audit is a durable, append-only local record of the
// coordinator's own block submissions (accepted or not) and share credits, backed
// by github.com/syndtr/goleveldb. This is distinct from — and never a
// substitute for — the external share-accounting/payout subsystem
// spec.md's Non-goals exclude; it exists so an operator can reconstruct
// what this process itself decided to submit/credit after the fact, e.g.
// when disputing an upstream rejection.
package audit

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"golang.org/x/crypto/blake2b"

	"github.com/ironforge-pool/poolcoordinator/internal/coordinator"
	"github.com/ironforge-pool/poolcoordinator/internal/log"
)

// Entry is one durable record: a block submission or a share credit.
type Entry struct {
	At        time.Time `json:"at"`
	Kind      string    `json:"kind"` // "block" or "share"
	RequestID uint64    `json:"requestId"`
	ClientID  string    `json:"clientId"`
	Address   string    `json:"address,omitempty"`
	DigestHex string    `json:"digestHex,omitempty"`
	Accepted  bool      `json:"accepted"`
	Reason    string    `json:"reason,omitempty"`
}

// Log is an append-only leveldb-backed audit trail, keyed by an
// increasing sequence number so iteration replays entries in write order.
type Log struct {
	db  *leveldb.DB
	log *log.Logger
}

// Open opens (creating if absent) the leveldb database at path.
func Open(path string) (*Log, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Log{db: db, log: log.New("component", "audit")}, nil
}

func seqKey(seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return b[:]
}

// checksum guards against silent on-disk corruption of an entry; it is
// stored alongside the entry and verified on read.
func checksum(b []byte) [32]byte { return blake2b.Sum256(b) }

type record struct {
	Entry    Entry    `json:"entry"`
	Checksum [32]byte `json:"checksum"`
}

// Append implements coordinator.AuditSink, translating the coordinator's
// decoupled AuditEntry into this package's own Entry shape and stamping it
// with the current time.
func (l *Log) Append(seq uint64, ce coordinator.AuditEntry) {
	l.append(seq, Entry{
		At:        time.Now(),
		Kind:      ce.Kind,
		RequestID: ce.RequestID,
		ClientID:  ce.ClientID,
		Address:   ce.Address,
		DigestHex: ce.DigestHex,
		Accepted:  ce.Accepted,
		Reason:    ce.Reason,
	})
}

// append writes entry under the next sequence number. Failures are logged
// and swallowed: a broken audit log must never block the submission path.
func (l *Log) append(seq uint64, entry Entry) {
	body, err := json.Marshal(entry)
	if err != nil {
		l.log.Error("audit: marshaling entry", "err", err)
		return
	}
	rec, err := json.Marshal(record{Entry: entry, Checksum: checksum(body)})
	if err != nil {
		l.log.Error("audit: marshaling record", "err", err)
		return
	}
	if err := l.db.Put(seqKey(seq), rec, nil); err != nil {
		l.log.Error("audit: writing entry", "seq", seq, "err", err)
	}
}

// Replay returns every stored entry in write order, verifying each
// record's checksum; a corrupted record is skipped and logged rather than
// aborting the whole replay.
func (l *Log) Replay() []Entry {
	iter := l.db.NewIterator(nil, nil)
	defer iter.Release()

	var out []Entry
	for iter.Next() {
		var rec record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			l.log.Warn("audit: skipping unreadable record", "err", err)
			continue
		}
		body, err := json.Marshal(rec.Entry)
		if err != nil {
			continue
		}
		if checksum(body) != rec.Checksum {
			l.log.Warn("audit: skipping record with bad checksum")
			continue
		}
		out = append(out, rec.Entry)
	}
	return out
}

// Close releases the underlying leveldb handle.
func (l *Log) Close() error { return l.db.Close() }
