package coordinator

import (
	"context"

	"github.com/ironforge-pool/poolcoordinator/internal/header"
)

// PreviousBlockInfo is delivered alongside each upstream template.
type PreviousBlockInfo struct {
	Target    string
	Timestamp int64
}

// UpstreamItem is one element of the upstream template stream.
type UpstreamItem struct {
	Template         header.Header
	PreviousBlockInfo *PreviousBlockInfo
}

// SubmitResult is the upstream node's verdict on a submitted block.
type SubmitResult struct {
	Added  bool
	Reason string
}

// UpstreamNode is the full-node RPC client the coordinator consumes. The
// concrete transport (gRPC, JSON-RPC, raw socket) is out of scope here; the
// core only calls these methods.
type UpstreamNode interface {
	TryConnect(ctx context.Context) bool
	Close() error
	// OnClose returns a channel that is closed when the upstream connection
	// drops while Streaming.
	OnClose() <-chan struct{}
	// BlockTemplateStream returns a channel of upstream items and a channel
	// that is closed (optionally carrying a fatal error) when the stream
	// ends.
	BlockTemplateStream(ctx context.Context) (<-chan UpstreamItem, <-chan error)
	SubmitBlock(ctx context.Context, tmpl header.Header) (SubmitResult, error)
	// ConnectionMode is exposed for diagnostic logging only.
	ConnectionMode() string
}

// Client is a subscribed miner as the framed server exposes it to the core.
type Client struct {
	ID            string
	PublicAddress string
	Graffiti      string
	Subscribed    bool
}

// FramedServer is the stratum-style push-protocol server the coordinator
// delegates work distribution to. Its wire format is out of scope; the core
// only supplies and consumes these in-process values.
type FramedServer interface {
	Start(ctx context.Context) error
	Stop() error
	// NewWork broadcasts a freshly published epoch to all subscribed
	// clients.
	NewWork(requestID uint64, tmpl header.Header)
	// WaitForWork enters no-work mode: subscribers receive no work until
	// the next NewWork call.
	WaitForWork()
	Clients() []Client
	Punish(clientID string, reason string)
	BanCount() int
}

// ShareSubsystem is the payout-adjacent collaborator credited with accepted
// shares; its accounting model is out of scope here.
type ShareSubsystem interface {
	Start(ctx context.Context) error
	Stop() error
	SubmitShare(ctx context.Context, publicAddress string) error
	// ShareRate returns shares/second, pool-wide when publicAddress == "".
	ShareRate(publicAddress string) float64
	SharesPendingPayout(publicAddress string) int64
}

// WebhookNotifier is the side-channel notification sink.
type WebhookNotifier interface {
	PoolConnected()
	PoolDisconnected()
	PoolSubmittedBlock(digestHex string, hashRate float64, minerCount int)
	PoolStatus(status StatusMessage)
}

// AuditEntry is one durable record of a submission-pipeline decision,
// decoupled from internal/audit's own Entry type so the coordinator never
// imports a concrete storage backend; internal/audit's wiring adapts
// between the two.
type AuditEntry struct {
	Kind      string // "block" or "share"
	RequestID uint64
	ClientID  string
	Address   string
	DigestHex string
	Accepted  bool
	Reason    string
}

// AuditSink durably records block submissions (accepted or rejected
// upstream, and submissions punished for a malformed header) and share
// credits.
// Optional: a Coordinator constructed without one simply skips recording.
type AuditSink interface {
	Append(seq uint64, entry AuditEntry)
}

// BlockArchiver mirrors an upstream-accepted block's raw encoding to cold
// storage. Optional: a Coordinator constructed without one simply skips
// archiving.
type BlockArchiver interface {
	StoreBlock(ctx context.Context, digestHex string, raw []byte)
}
