package coordinator

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ironforge-pool/poolcoordinator/internal/header"
	"github.com/ironforge-pool/poolcoordinator/internal/target"
	"github.com/ironforge-pool/poolcoordinator/internal/testdouble"
)

func testGraffiti() string { return hex.EncodeToString(make([]byte, 32)) }

// hardTargetHex is numerically tiny (only the last byte is 1), so it is
// very hard to meet: useful for asserting that a submission is dropped for
// reasons other than "digest happened to meet the target".
func hardTargetHex() string {
	b := make([]byte, 32)
	b[31] = 1
	return hex.EncodeToString(b)
}

// easyTargetHex is numerically maximal, so any digest meets it: useful for
// asserting the block/share paths actually fire.
func easyTargetHex() string {
	b := make([]byte, 32)
	for i := range b {
		b[i] = 0xff
	}
	return hex.EncodeToString(b)
}

func tmplWithTarget(hashTarget string) header.Header {
	return header.Header{
		PreviousBlockHash: hex.EncodeToString(make([]byte, 32)),
		Target:            hashTarget,
		Timestamp:         time.Now().UnixMilli(),
		Randomness:        "",
		Graffiti:          hex.EncodeToString(make([]byte, 32)),
	}
}

type harness struct {
	c        *Coordinator
	upstream *testdouble.Upstream
	server   *testdouble.Server
	shares   *testdouble.Shares
	webhooks *testdouble.Webhooks
}

// newHarness leaves retargetDelay/reconnectDelay at production defaults
// (10s/5s) so ordinary submission tests never race a background retarget;
// tests that exercise the retarget or reconnect path override the package
// vars themselves and restore them via t.Cleanup.
func newHarness(t *testing.T, poolDifficulty target.Difficulty) *harness {
	t.Helper()

	up := testdouble.NewUpstream()
	srv := testdouble.NewServer()
	shares := testdouble.NewShares(0, 0)
	hooks := testdouble.NewWebhooks()

	c, err := New(Config{PoolName: "test-pool", PoolDifficulty: poolDifficulty}, up, srv, shares, hooks)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, c.Start(ctx))
	t.Cleanup(func() {
		c.Stop()
		c.WaitForStop()
	})

	return &harness{c: c, upstream: up, server: srv, shares: shares, webhooks: hooks}
}

func (h *harness) ingest(t *testing.T, hashTarget string) {
	t.Helper()
	before := len(h.server.Broadcasts())
	h.upstream.Push(UpstreamItem{
		Template:          tmplWithTarget(hashTarget),
		PreviousBlockInfo: &PreviousBlockInfo{Target: hashTarget, Timestamp: time.Now().UnixMilli()},
	})
	h.waitForBroadcastCount(t, before+1)
}

func (h *harness) waitForBroadcastCount(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(h.server.Broadcasts()) >= n
	}, time.Second, time.Millisecond)
}

func TestPublishEpochBroadcastsSequentialRequestIDs(t *testing.T) {
	h := newHarness(t, 1000)

	h.ingest(t, hardTargetHex())
	h.ingest(t, hardTargetHex())

	broadcasts := h.server.Broadcasts()
	require.Len(t, broadcasts, 2)
	require.Equal(t, uint64(0), broadcasts[0].RequestID)
	require.Equal(t, uint64(1), broadcasts[1].RequestID)
}

func TestStaleSubmissionDroppedNoCreditNoSubmit(t *testing.T) {
	// Maximal header and pool targets: were the submission not stale, it
	// would both submit a block and earn a share.
	h := newHarness(t, 1)

	h.ingest(t, easyTargetHex()) // epoch 0
	h.ingest(t, easyTargetHex()) // epoch 1

	submitted := 0
	h.upstream.SubmitResultFn = func(tmpl header.Header) (SubmitResult, error) {
		submitted++
		return SubmitResult{Added: true}, nil
	}

	client := Client{ID: "miner-1", PublicAddress: "addr-1", Graffiti: testGraffiti()}
	h.c.SubmitWork(context.Background(), client, 0, "deadbeef")

	require.Empty(t, h.shares.Credits())
	require.Zero(t, submitted)
	require.Empty(t, h.server.Punishments())
}

func TestDuplicateWithinEpochDroppedSecondTime(t *testing.T) {
	h := newHarness(t, 1000)
	h.ingest(t, easyTargetHex())

	client := Client{ID: "miner-1", PublicAddress: "addr-1", Graffiti: testGraffiti()}
	h.c.SubmitWork(context.Background(), client, 0, "aa")
	firstCredits := len(h.shares.Credits())

	h.c.SubmitWork(context.Background(), client, 0, "aa")
	secondCredits := len(h.shares.Credits())

	require.Equal(t, firstCredits, secondCredits, "duplicate nonce must not earn a second share credit")
	require.Empty(t, h.server.Punishments())
}

func TestDuplicateAcrossEpochsIsNotADuplicate(t *testing.T) {
	// Pool difficulty 1 gives the maximal pool target, so every accepted
	// submission earns a share.
	h := newHarness(t, 1)
	h.ingest(t, easyTargetHex())

	client := Client{ID: "miner-1", PublicAddress: "addr-1", Graffiti: testGraffiti()}
	h.c.SubmitWork(context.Background(), client, 0, "aa")
	require.Eventually(t, func() bool { return len(h.shares.Credits()) == 1 }, time.Second, time.Millisecond)

	h.ingest(t, easyTargetHex()) // epoch 1, deduper reset
	h.c.SubmitWork(context.Background(), client, 1, "aa")

	require.Eventually(t, func() bool { return len(h.shares.Credits()) == 2 }, time.Second, time.Millisecond)
}

func TestShareCreditedWithoutBlockSubmission(t *testing.T) {
	h := newHarness(t, 1)
	h.ingest(t, hardTargetHex())

	h.upstream.SubmitResultFn = func(tmpl header.Header) (SubmitResult, error) {
		t.Fatal("block submission should not have fired against a hard header target")
		return SubmitResult{}, nil
	}

	client := Client{ID: "miner-1", PublicAddress: "addr-1", Graffiti: testGraffiti()}
	h.c.SubmitWork(context.Background(), client, 0, "aa")

	// Pool target derived from difficulty 1 is maximal, so any digest is a
	// share; the header's own target is hard, so no block fires.
	require.Eventually(t, func() bool { return len(h.shares.Credits()) == 1 }, time.Second, time.Millisecond)
	require.Equal(t, []string{"addr-1"}, h.shares.Credits())
}

func TestMalformedSubmissionPunishesClient(t *testing.T) {
	h := newHarness(t, 1000)
	h.ingest(t, hardTargetHex())

	client := Client{ID: "miner-1", PublicAddress: "addr-1", Graffiti: testGraffiti()}
	// Non-hex randomness fails SerializeMineableHeader.
	h.c.SubmitWork(context.Background(), client, 0, "not-hex-zz")

	require.Eventually(t, func() bool { return len(h.server.Punishments()) == 1 }, time.Second, time.Millisecond)
	require.Empty(t, h.shares.Credits())
}

func TestEstimateHashRateMatchesRateTimesDifficulty(t *testing.T) {
	rate := 2.5
	difficulty := target.Difficulty(1_000_000)
	got := estimateHashRate(rate, difficulty)
	want := rate * float64(difficulty)
	require.InDelta(t, want, got, 1e-6*want+1e-6)
}

func TestEstimateHashRateNonNegative(t *testing.T) {
	require.Equal(t, float64(0), estimateHashRate(0, 1000))
	require.GreaterOrEqual(t, estimateHashRate(3.2, 500), float64(0))
}

func TestUpstreamDisconnectReentersWaitForWork(t *testing.T) {
	origReconnect := reconnectDelay
	reconnectDelay = 10 * time.Millisecond
	t.Cleanup(func() { reconnectDelay = origReconnect })

	h := newHarness(t, 1000)
	h.ingest(t, hardTargetHex())

	h.upstream.SignalClose()

	require.Eventually(t, func() bool { return h.server.WaitForWorkCalls() >= 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return h.webhooks.DisconnectedCount() >= 1 }, time.Second, time.Millisecond)
}

func TestRetargetRepublishesWhenDifficultyChanges(t *testing.T) {
	origRetarget := retargetDelay
	retargetDelay = 20 * time.Millisecond
	t.Cleanup(func() { retargetDelay = origRetarget })

	h := newHarness(t, 1000)
	// A maximal head target recovers difficulty 1. When the timer fires
	// 20ms later against a target block time of 15s, the block "arrived"
	// far faster than schedule, so Retarget raises the difficulty (clamped
	// to 4x) and the republished target is smaller than the original.
	h.ingest(t, easyTargetHex())

	require.Eventually(t, func() bool {
		return len(h.server.Broadcasts()) >= 2
	}, 2*time.Second, 5*time.Millisecond, "retarget should republish a new epoch")

	broadcasts := h.server.Broadcasts()
	last := broadcasts[len(broadcasts)-1]
	require.Equal(t, uint64(1), last.RequestID)
	require.NotEqual(t, broadcasts[0].Template.Target, last.Template.Target)
}

func TestRetargetNoOpDoesNotRepublish(t *testing.T) {
	origRetarget := retargetDelay
	retargetDelay = 20 * time.Millisecond
	t.Cleanup(func() { retargetDelay = origRetarget })

	h := newHarness(t, 1000)
	// A maximal head target recovers difficulty 1, and a head timestamp an
	// hour old makes Retarget floor the result at difficulty 1 again. Its
	// target is the maximal target the template already carries, so the
	// timer fires but there is nothing to republish.
	h.upstream.Push(UpstreamItem{
		Template:          tmplWithTarget(easyTargetHex()),
		PreviousBlockInfo: &PreviousBlockInfo{Target: easyTargetHex(), Timestamp: time.Now().Add(-time.Hour).UnixMilli()},
	})
	h.waitForBroadcastCount(t, 1)

	time.Sleep(100 * time.Millisecond)
	require.Len(t, h.server.Broadcasts(), 1)
}
