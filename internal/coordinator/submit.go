package coordinator

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/ironforge-pool/poolcoordinator/internal/header"
	"github.com/ironforge-pool/poolcoordinator/internal/target"
)

// submitRequest is handed from SubmitWork (any goroutine) to the run loop
// over submitCh; done is closed once the pipeline below has finished so the
// caller can observe completion without the executor blocking on it.
type submitRequest struct {
	client          Client
	miningRequestID uint64
	randomness      string
	done            chan struct{}
}

// handleSubmit runs the submission-validation pipeline described in
// spec.md §4.5.6, steps 1-10, entirely on the coordinator's executor
// goroutine. It always closes req.done before returning.
func (c *Coordinator) handleSubmit(ctx context.Context, req submitRequest) {
	defer close(req.done)

	// 1. Staleness.
	if c.nextRequestID == 0 || req.miningRequestID != c.nextRequestID-1 {
		c.log.Debug("stale submission dropped", "client", req.client.ID, "got", req.miningRequestID)
		return
	}

	// 2. Cache lookup.
	tmpl, ok := c.cache.Get(req.miningRequestID)
	if !ok {
		c.log.Warn("submission for evicted epoch", "client", req.client.ID, "requestId", req.miningRequestID)
		return
	}

	// 3. Shallow clone: miner-specific fields never mutate the cached original.
	clone := tmpl.Clone()

	// 4. Duplicate check.
	if c.dedup.IsDuplicate(req.client.ID, req.randomness) {
		c.log.Warn("duplicate submission dropped", "client", req.client.ID, "nonce", req.randomness)
		return
	}

	// 5. Record, strictly before any suspension point below.
	c.dedup.Record(req.client.ID, req.randomness)

	// 6. Compose.
	clone.Graffiti = req.client.Graffiti
	clone.Randomness = req.randomness

	// 7. Encode.
	encoded, err := header.SerializeMineableHeader(clone)
	if err != nil {
		c.log.Warn("malformed submission header, punishing client", "client", req.client.ID, "err", err)
		c.server.Punish(req.client.ID, "malformed header")
		c.recent.insert(recentSubmission{
			requestID: req.miningRequestID,
			clientID:  req.client.ID,
			accepted:  false,
			reason:    "malformed header",
			at:        time.Now(),
		})
		c.recordAudit(AuditEntry{
			Kind:      "block",
			RequestID: req.miningRequestID,
			ClientID:  req.client.ID,
			Address:   req.client.PublicAddress,
			Accepted:  false,
			Reason:    "malformed header",
		})
		return
	}

	// 8. Hash.
	digest := header.Hash(encoded)
	digestHex := hex.EncodeToString(digest[:])

	headerTarget, err := target.ParseTargetHex(clone.Target)
	if err != nil {
		c.log.Error("cached template carries malformed target", "requestId", req.miningRequestID, "err", err)
		return
	}

	var isBlock, isShare bool

	// 9. Block check.
	if target.MeetsTarget(digest, headerTarget) {
		isBlock = true
		result, err := c.upstream.SubmitBlock(ctx, clone)
		switch {
		case err != nil:
			c.log.Error("submitting block upstream", "err", err)
		case result.Added:
			rate := estimateHashRate(c.shares.ShareRate(""), c.cfg.PoolDifficulty)
			miners := c.countSubscribed()
			c.log.Info("block accepted upstream", "hash", header.DisplayHash(digest), "hashRate", rate)
			c.webhooks.PoolSubmittedBlock(digestHex, rate, miners)
			if c.archive != nil {
				c.archive.StoreBlock(ctx, digestHex, encoded)
			}
			c.recordAudit(AuditEntry{
				Kind:      "block",
				RequestID: req.miningRequestID,
				ClientID:  req.client.ID,
				Address:   req.client.PublicAddress,
				DigestHex: digestHex,
				Accepted:  true,
			})
		default:
			c.log.Info("block rejected upstream", "reason", result.Reason)
			c.recordAudit(AuditEntry{
				Kind:      "block",
				RequestID: req.miningRequestID,
				ClientID:  req.client.ID,
				Address:   req.client.PublicAddress,
				DigestHex: digestHex,
				Accepted:  false,
				Reason:    result.Reason,
			})
		}
	}

	// 10. Share check, independent of the block check above.
	if target.MeetsTarget(digest, c.poolTarget) {
		isShare = true
		if err := c.shares.SubmitShare(ctx, req.client.PublicAddress); err != nil {
			c.log.Error("crediting share", "address", req.client.PublicAddress, "err", err)
		} else {
			c.recordAudit(AuditEntry{
				Kind:      "share",
				RequestID: req.miningRequestID,
				ClientID:  req.client.ID,
				Address:   req.client.PublicAddress,
				DigestHex: digestHex,
				Accepted:  true,
			})
		}
	}

	c.recent.insert(recentSubmission{
		requestID: req.miningRequestID,
		clientID:  req.client.ID,
		digestHex: digestHex,
		accepted:  true,
		block:     isBlock,
		share:     isShare,
		at:        time.Now(),
	})
}
