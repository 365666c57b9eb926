package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/aristanetworks/goarista/monotime"

	"github.com/ironforge-pool/poolcoordinator/internal/header"
	"github.com/ironforge-pool/poolcoordinator/internal/target"
)

// run is the coordinator's single executor: every piece of coordinator
// state declared in Coordinator's "owned exclusively by run()" block is
// read and written only from this goroutine. Everything else communicates
// through submitCh, adminCh, statusIntervalCh, startCh and exitCh.
func (c *Coordinator) run(ctx context.Context) {
	defer close(c.doneCh)
	defer c.teardown()

	select {
	case <-c.startCh:
	case <-c.exitCh:
		return
	}

	retargetTimer := time.NewTimer(time.Hour)
	if !retargetTimer.Stop() {
		<-retargetTimer.C
	}
	defer retargetTimer.Stop()

	var statusTicker *time.Ticker
	resetStatusTicker := func(d time.Duration) {
		if statusTicker != nil {
			statusTicker.Stop()
			statusTicker = nil
		}
		if d > 0 {
			statusTicker = time.NewTicker(d)
		}
	}
	resetStatusTicker(c.cfg.StatusInterval)
	defer func() {
		if statusTicker != nil {
			statusTicker.Stop()
		}
	}()
	statusTickerC := func() <-chan time.Time {
		if statusTicker == nil {
			return nil
		}
		return statusTicker.C
	}

	reconnectTimer := time.NewTimer(0)
	defer reconnectTimer.Stop()

	var items <-chan UpstreamItem
	var streamErr <-chan error
	var onClose <-chan struct{}

	for {
		select {
		case <-c.exitCh:
			return

		case <-reconnectTimer.C:
			c.setPhase(Connecting)
			if c.upstream.TryConnect(ctx) {
				c.conn = connected
				c.outageWarned = false
				c.setPhase(Streaming)
				c.webhooks.PoolConnected()
				c.log.Info("connected to upstream", "mode", c.upstream.ConnectionMode())
				items, streamErr = c.upstream.BlockTemplateStream(ctx)
				onClose = c.upstream.OnClose()
			} else {
				if !c.outageWarned {
					c.log.Warn("upstream unreachable, retrying", "delay", reconnectDelay)
					c.outageWarned = true
				}
				reconnectTimer.Reset(reconnectDelay)
			}

		case item, ok := <-items:
			if !ok {
				continue
			}
			c.ingestTemplate(item, retargetTimer)

		case err, ok := <-streamErr:
			if !ok {
				continue
			}
			if err != nil {
				c.log.Error("fatal upstream stream error, stopping", "err", err)
				c.Stop()
			}

		case <-onClose:
			if c.conn == connected {
				c.server.WaitForWork()
				c.webhooks.PoolDisconnected()
				c.conn = reconnecting
				c.outageWarned = false
			}
			items, streamErr, onClose = nil, nil, nil
			c.setPhase(Connecting)
			reconnectTimer.Reset(0)

		case <-retargetTimer.C:
			c.fireRetarget()

		case req := <-c.submitCh:
			c.handleSubmit(ctx, req)

		case action := <-c.adminCh:
			c.handleAdmin(action)

		case d := <-c.statusIntervalCh:
			resetStatusTicker(d)
			c.cfg.StatusInterval = d
			c.log.Info("status interval updated via config reload", "interval", d)

		case <-statusTickerC():
			c.publishStatus(ctx)
		}
	}
}

func (c *Coordinator) teardown() {
	c.setPhase(Stopped)
	if err := c.upstream.Close(); err != nil {
		c.log.Warn("closing upstream", "err", err)
	}
	if err := c.server.Stop(); err != nil {
		c.log.Warn("stopping framed server", "err", err)
	}
	if err := c.shares.Stop(); err != nil {
		c.log.Warn("stopping share subsystem", "err", err)
	}
	c.log.Info("coordinator stopped")
}

// ingestTemplate handles one upstream { template, previousBlockInfo } item:
// restarts the retarget timer, updates the tracked chain head, and publishes
// the template as a new epoch.
func (c *Coordinator) ingestTemplate(item UpstreamItem, retargetTimer *time.Timer) {
	if item.PreviousBlockInfo == nil {
		c.log.Error("protocol violation: upstream item missing previousBlockInfo")
		return
	}

	if !retargetTimer.Stop() {
		select {
		case <-retargetTimer.C:
		default:
		}
	}
	retargetTimer.Reset(retargetDelay)

	headTarget, err := target.ParseTargetHex(item.PreviousBlockInfo.Target)
	if err != nil {
		c.log.Error("malformed previousBlockInfo target", "err", err)
		return
	}
	c.currentHeadTarget = headTarget
	c.currentHeadTimestamp = time.UnixMilli(item.PreviousBlockInfo.Timestamp)
	c.haveHead = true

	id := c.publishEpoch(item.Template)
	c.log.Info("published epoch", "requestId", id)
}

// publishEpoch assigns a fresh requestId, inserts the template into the
// work cache, resets the deduper, and broadcasts it (the broadcast is
// skipped while paused via the admin console; Resume re-broadcasts the
// current epoch). Step order (cache,
// then deduper reset, then broadcast) matters: the deduper must be empty
// before the first miner submission against the broadcast epoch can land.
func (c *Coordinator) publishEpoch(tmpl header.Header) uint64 {
	id := c.nextRequestID
	c.nextRequestID++
	c.cache.Put(id, tmpl)
	c.dedup.Reset()
	if !c.paused {
		c.server.NewWork(id, tmpl)
	}
	return id
}

// fireRetarget recomputes difficulty from the tracked chain head and, if it
// would actually change the current epoch's target, mutates the cached
// template in place and republishes it as a new epoch.
func (c *Coordinator) fireRetarget() {
	if !c.haveHead {
		return
	}
	start := monotime.Now()
	prevDifficulty, err := target.DifficultyFromTarget(c.currentHeadTarget)
	if err != nil {
		c.log.Error("retarget: recovering difficulty from head target", "err", err)
		return
	}

	now := time.Now()
	newDifficulty := target.Retarget(now, c.currentHeadTimestamp, prevDifficulty)
	newTarget, err := target.TargetFromDifficulty(newDifficulty)
	if err != nil {
		c.log.Error("retarget: deriving new target", "err", err)
		return
	}

	if c.nextRequestID == 0 {
		return
	}
	currentID := c.nextRequestID - 1
	tmpl, ok := c.cache.Get(currentID)
	if !ok {
		c.log.Warn("retarget fired with no current epoch cached", "requestId", currentID)
		return
	}

	if tmpl.Target == newTarget.Hex() {
		// reissuing would needlessly reset miner search space.
		return
	}

	mutated := tmpl.Clone()
	mutated.Target = newTarget.Hex()
	mutated.Timestamp = now.UnixMilli()
	c.cache.Mutate(currentID, mutated)

	newID := c.publishEpoch(mutated)
	c.log.Info("retarget republished epoch", "from", currentID, "to", newID, "difficulty", newDifficulty, "computeTime", monotime.Now().Sub(start))
}

func (c *Coordinator) countSubscribed() int {
	n := 0
	for _, cl := range c.server.Clients() {
		if cl.Subscribed {
			n++
		}
	}
	return n
}

func (c *Coordinator) publishStatus(ctx context.Context) {
	c.webhooks.PoolStatus(c.GetStatus(ctx, ""))
}

// GetStatus computes the status snapshot, resolving the share-subsystem
// calls concurrently as the suspension-point model in the concurrency
// design allows.
func (c *Coordinator) GetStatus(ctx context.Context, address string) StatusMessage {
	var hashRate float64
	var pending int64
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		hashRate = estimateHashRate(c.shares.ShareRate(""), c.cfg.PoolDifficulty)
	}()
	go func() {
		defer wg.Done()
		pending = c.shares.SharesPendingPayout("")
	}()
	wg.Wait()

	msg := StatusMessage{
		Name:          c.cfg.PoolName,
		HashRate:      hashRate,
		Miners:        c.countSubscribed(),
		SharesPending: pending,
		BanCount:      c.server.BanCount(),
	}

	if address == "" {
		return msg
	}

	var addrRate float64
	var addrPending int64
	var wg2 sync.WaitGroup
	wg2.Add(2)
	go func() {
		defer wg2.Done()
		addrRate = estimateHashRate(c.shares.ShareRate(address), c.cfg.PoolDifficulty)
	}()
	go func() {
		defer wg2.Done()
		addrPending = c.shares.SharesPendingPayout(address)
	}()
	wg2.Wait()

	addrMiners := 0
	for _, cl := range c.server.Clients() {
		if cl.Subscribed && cl.PublicAddress == address {
			addrMiners++
		}
	}

	msg.AddressHashRate = addrRate
	msg.AddressShares = addrPending
	msg.AddressMinerCount = addrMiners
	return msg
}
