package coordinator

import (
	"container/ring"
	"sync"
	"time"

	"github.com/ironforge-pool/poolcoordinator/internal/log"
)

// recentDepth bounds the in-memory ring of recent submission outcomes;
// older entries are dropped as new ones arrive. Neither the status API nor
// the admin console reads this ring.
const recentDepth = 64

// recentSubmission is one outcome of the submission-handling pipeline,
// retained for operator visibility after the fact. It carries no data the
// coordinator itself needs to re-derive a decision from.
type recentSubmission struct {
	requestID uint64
	clientID  string
	digestHex string
	accepted  bool
	block     bool
	share     bool
	reason    string
	at        time.Time
}

// recentSubmissions is a fixed-depth ring of the most recent submission
// outcomes, adapted from the teacher's unconfirmed-block tracker: instead of
// cross-checking canonical-chain inclusion, it just retains the last
// recentDepth decisions in memory.
type recentSubmissions struct {
	depth uint
	ring  *ring.Ring
	lock  sync.RWMutex
}

func newRecentSubmissions(depth uint) *recentSubmissions {
	return &recentSubmissions{depth: depth}
}

// insert records a new submission outcome, evicting the oldest once the
// ring exceeds its depth.
func (s *recentSubmissions) insert(rs recentSubmission) {
	item := ring.New(1)
	item.Value = &rs

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.ring == nil {
		s.ring = item
	} else {
		s.ring.Move(-1).Link(item)
	}
	s.shiftLocked()

	log.Debug("recorded submission outcome", "requestId", rs.requestID, "client", rs.clientID, "accepted", rs.accepted, "block", rs.block, "share", rs.share)
}

// shiftLocked drops the oldest entries once the ring exceeds depth. Caller
// must hold s.lock.
func (s *recentSubmissions) shiftLocked() {
	if s.ring == nil {
		return
	}
	for uint(s.ring.Len()) > s.depth {
		if s.ring.Value == s.ring.Next().Value {
			s.ring = nil
			return
		}
		s.ring = s.ring.Move(-1)
		s.ring.Unlink(1)
		s.ring = s.ring.Move(1)
	}
}

// snapshot returns the retained submissions, oldest first.
func (s *recentSubmissions) snapshot() []recentSubmission {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.ring == nil {
		return nil
	}
	out := make([]recentSubmission, 0, s.ring.Len())
	s.ring.Do(func(v interface{}) {
		if v == nil {
			return
		}
		out = append(out, *v.(*recentSubmission))
	})
	return out
}
