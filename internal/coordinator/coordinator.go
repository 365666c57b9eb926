// Package coordinator implements the pool coordination engine: the
// work-distribution state machine that brokers block templates between an
// upstream full node and a framed server's subscribed miners, validates
// submissions, and recomputes difficulty on a timer.
//
// The scheduling model is single-threaded and cooperative, directly in the
// style of the teacher's miner worker loop: one goroutine owns all mutable
// coordinator state (nextRequestID, currentHead*, the work cache, the
// deduper, the phase) and every other goroutine communicates with it only
// through channels. No lock guards that state.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ironforge-pool/poolcoordinator/internal/dedupe"
	"github.com/ironforge-pool/poolcoordinator/internal/log"
	"github.com/ironforge-pool/poolcoordinator/internal/target"
	"github.com/ironforge-pool/poolcoordinator/internal/workcache"
)

// Phase is the coordinator's top-level lifecycle state.
type Phase int32

const (
	Stopped Phase = iota
	Connecting
	Streaming
)

func (p Phase) String() string {
	switch p {
	case Stopped:
		return "stopped"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// connState is the explicit connection-state tracker the design notes call
// for: poolDisconnected fires exactly on Connected -> Reconnecting, not on
// every failed retry.
type connState int32

const (
	neverConnected connState = iota
	connected
	reconnecting
)

// retargetDelay and reconnectDelay are vars, not consts, so white-box tests
// in this package can shrink them rather than waiting out real 10s/5s
// timers; production code never reassigns them.
var (
	retargetDelay  = 10 * time.Second
	reconnectDelay = 5 * time.Second
)

// Config carries the coordinator's recognized configuration keys.
type Config struct {
	PoolName       string
	PoolDifficulty target.Difficulty
	// StatusInterval <= 0 disables the status timer.
	StatusInterval time.Duration
}

// Coordinator owns the pool coordination state machine.
type Coordinator struct {
	cfg      Config
	upstream UpstreamNode
	server   FramedServer
	shares   ShareSubsystem
	webhooks WebhookNotifier

	poolTarget target.Target

	cache  *workcache.Cache
	dedup  *dedupe.Deduper
	recent *recentSubmissions

	// audit and archive are optional; a Coordinator built without
	// SetAuditSink/SetBlockArchiver simply skips that recording.
	audit    AuditSink
	auditSeq uint64
	archive  BlockArchiver

	log *log.Logger

	phase int32 // Phase, accessed atomically for outside-the-loop reads (e.g. status).

	// Owned exclusively by run(); never touched from another goroutine.
	nextRequestID        uint64
	currentHeadTarget    target.Target
	currentHeadTimestamp time.Time
	haveHead             bool
	conn                 connState
	outageWarned         bool
	paused               bool

	submitCh         chan submitRequest
	adminCh          chan adminAction
	statusIntervalCh chan time.Duration
	startCh          chan struct{}
	exitCh           chan struct{}
	doneCh           chan struct{}

	stopOnce sync.Once
	runOnce  sync.Once
}

// New constructs a Coordinator in the Stopped phase. poolDifficulty is fixed
// for the process lifetime; New is the only place PoolTarget is derived.
func New(cfg Config, upstream UpstreamNode, server FramedServer, shares ShareSubsystem, webhooks WebhookNotifier) (*Coordinator, error) {
	poolTarget, err := target.TargetFromDifficulty(cfg.PoolDifficulty)
	if err != nil {
		return nil, fmt.Errorf("coordinator: deriving pool target: %w", err)
	}
	return &Coordinator{
		cfg:              cfg,
		upstream:         upstream,
		server:           server,
		shares:           shares,
		webhooks:         webhooks,
		poolTarget:       poolTarget,
		cache:            workcache.New(),
		dedup:            dedupe.New(),
		recent:           newRecentSubmissions(recentDepth),
		log:              log.New("component", "coordinator", "pool", cfg.PoolName),
		submitCh:         make(chan submitRequest),
		adminCh:          make(chan adminAction),
		statusIntervalCh: make(chan time.Duration),
		startCh:          make(chan struct{}, 1),
		exitCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
	}, nil
}

// SetStatusInterval updates the status timer's period without restarting
// the coordinator, letting a config hot-reload take effect live (spec.md
// §6's poolStatusNotificationInterval is otherwise only read at Start).
// <= 0 disables the timer entirely until set again.
func (c *Coordinator) SetStatusInterval(d time.Duration) {
	select {
	case c.statusIntervalCh <- d:
	case <-c.exitCh:
	}
}

// SetAuditSink installs the durable audit trail. Must be called before
// Start; it is not safe to change once the run loop is live.
func (c *Coordinator) SetAuditSink(sink AuditSink) { c.audit = sink }

// SetBlockArchiver installs the optional cold-storage mirror for
// upstream-accepted blocks. Must be called before Start.
func (c *Coordinator) SetBlockArchiver(a BlockArchiver) { c.archive = a }

// recordAudit appends to the audit sink if one is installed. Called only
// from the executor goroutine, so auditSeq needs no synchronization.
func (c *Coordinator) recordAudit(entry AuditEntry) {
	if c.audit == nil {
		return
	}
	c.auditSeq++
	c.audit.Append(c.auditSeq, entry)
}

// PoolTarget returns the immutable share threshold derived at construction.
func (c *Coordinator) PoolTarget() target.Target { return c.poolTarget }

// Status implements console.AdminAPI (and the admin IPC handler's "status"
// command) by wrapping GetStatus for the pool-wide snapshot.
func (c *Coordinator) Status() interface{} { return c.GetStatus(context.Background(), "") }

// Phase reports the current lifecycle phase. Safe to call from any
// goroutine.
func (c *Coordinator) Phase() Phase { return Phase(atomic.LoadInt32(&c.phase)) }

func (c *Coordinator) setPhase(p Phase) { atomic.StoreInt32(&c.phase, int32(p)) }

// Start is idempotent: Stopped -> Connecting. Starts the share subsystem,
// opens the framed server's listener, arms the optional status timer, and
// launches the connect loop. Returns immediately.
func (c *Coordinator) Start(ctx context.Context) error {
	if c.Phase() != Stopped {
		return nil
	}
	c.setPhase(Connecting)

	if err := c.shares.Start(ctx); err != nil {
		c.setPhase(Stopped)
		return fmt.Errorf("coordinator: starting share subsystem: %w", err)
	}
	if err := c.server.Start(ctx); err != nil {
		c.shares.Stop()
		c.setPhase(Stopped)
		return fmt.Errorf("coordinator: starting framed server: %w", err)
	}

	c.runOnce.Do(func() {
		go c.run(ctx)
	})
	c.startCh <- struct{}{}
	return nil
}

// Stop is idempotent: transitions to Stopped, tearing down the upstream
// connection, the framed server, the share subsystem, and every timer.
// Resolves any caller awaiting WaitForStop.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.exitCh)
	})
}

// WaitForStop blocks until Stop has run to completion.
func (c *Coordinator) WaitForStop() {
	<-c.doneCh
}

// SubmitWork is the coordinator's entry point for an inbound miner
// submission. It never blocks the coordinator's single executor for longer
// than one round trip through the channel hand-off; the actual validation
// pipeline runs on the executor goroutine to preserve the ordering
// guarantees in the concurrency model.
func (c *Coordinator) SubmitWork(ctx context.Context, client Client, miningRequestID uint64, randomness string) {
	req := submitRequest{
		client:          client,
		miningRequestID: miningRequestID,
		randomness:      randomness,
		done:            make(chan struct{}),
	}
	select {
	case c.submitCh <- req:
		<-req.done
	case <-ctx.Done():
	case <-c.exitCh:
	}
}
