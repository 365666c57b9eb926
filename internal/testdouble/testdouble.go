// Package testdouble provides in-memory fakes for the coordinator's three
// external collaborators (upstream node, framed server, share subsystem).
// internal/coordinator's own tests are the primary consumer; cmd/poold also
// wires these in as its standalone demo backend, since a real upstream
// RPC client and stratum-style server remain out of scope for this
// repository (spec.md §1/§6) and are meant to be supplied by an integrator.
package testdouble

import (
	"context"
	"sync"

	"github.com/ironforge-pool/poolcoordinator/internal/coordinator"
	"github.com/ironforge-pool/poolcoordinator/internal/header"
)

// Upstream is a scriptable fake of coordinator.UpstreamNode.
type Upstream struct {
	mu sync.Mutex

	ConnectResult bool
	items         chan coordinator.UpstreamItem
	errs          chan error
	closeCh       chan struct{}
	closed        bool

	SubmitResultFn func(tmpl header.Header) (coordinator.SubmitResult, error)
}

// NewUpstream returns an Upstream whose TryConnect always succeeds.
func NewUpstream() *Upstream {
	return &Upstream{
		ConnectResult: true,
		items:         make(chan coordinator.UpstreamItem, 16),
		errs:          make(chan error, 1),
		closeCh:       make(chan struct{}),
	}
}

func (u *Upstream) TryConnect(ctx context.Context) bool { return u.ConnectResult }

func (u *Upstream) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.closed {
		u.closed = true
		close(u.items)
	}
	return nil
}

func (u *Upstream) OnClose() <-chan struct{} { return u.closeCh }

func (u *Upstream) BlockTemplateStream(ctx context.Context) (<-chan coordinator.UpstreamItem, <-chan error) {
	return u.items, u.errs
}

func (u *Upstream) SubmitBlock(ctx context.Context, tmpl header.Header) (coordinator.SubmitResult, error) {
	if u.SubmitResultFn != nil {
		return u.SubmitResultFn(tmpl)
	}
	return coordinator.SubmitResult{Added: true}, nil
}

func (u *Upstream) ConnectionMode() string { return "fake" }

// Push delivers one upstream item to the stream.
func (u *Upstream) Push(item coordinator.UpstreamItem) { u.items <- item }

// SignalClose closes the onClose subscription, as a real upstream would on
// connection drop.
func (u *Upstream) SignalClose() { close(u.closeCh) }

// Server is a scriptable fake of coordinator.FramedServer.
type Server struct {
	mu sync.Mutex

	clients    []coordinator.Client
	broadcasts []Broadcast
	punished   []Punishment
	banCount   int
	waitedWork int
}

// Broadcast records one NewWork call.
type Broadcast struct {
	RequestID uint64
	Template  header.Header
}

// Punishment records one Punish call.
type Punishment struct {
	ClientID string
	Reason   string
}

func NewServer(clients ...coordinator.Client) *Server {
	return &Server{clients: clients}
}

func (s *Server) Start(ctx context.Context) error { return nil }
func (s *Server) Stop() error                     { return nil }

func (s *Server) NewWork(requestID uint64, tmpl header.Header) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcasts = append(s.broadcasts, Broadcast{RequestID: requestID, Template: tmpl})
}

func (s *Server) WaitForWork() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitedWork++
}

func (s *Server) Clients() []coordinator.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]coordinator.Client, len(s.clients))
	copy(out, s.clients)
	return out
}

func (s *Server) Punish(clientID string, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.punished = append(s.punished, Punishment{ClientID: clientID, Reason: reason})
	s.banCount++
}

func (s *Server) BanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banCount
}

// Broadcasts returns every NewWork call observed so far.
func (s *Server) Broadcasts() []Broadcast {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Broadcast, len(s.broadcasts))
	copy(out, s.broadcasts)
	return out
}

// Punishments returns every Punish call observed so far.
func (s *Server) Punishments() []Punishment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Punishment, len(s.punished))
	copy(out, s.punished)
	return out
}

// WaitForWorkCalls reports how many times WaitForWork was invoked.
func (s *Server) WaitForWorkCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitedWork
}

// Shares is a scriptable fake of coordinator.ShareSubsystem.
type Shares struct {
	mu      sync.Mutex
	rate    float64
	pending int64
	credits []string
}

func NewShares(rate float64, pending int64) *Shares {
	return &Shares{rate: rate, pending: pending}
}

func (s *Shares) Start(ctx context.Context) error { return nil }
func (s *Shares) Stop() error                     { return nil }

func (s *Shares) SubmitShare(ctx context.Context, publicAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credits = append(s.credits, publicAddress)
	return nil
}

func (s *Shares) ShareRate(publicAddress string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

func (s *Shares) SharesPendingPayout(publicAddress string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Credits returns every address SubmitShare was called with, in order.
func (s *Shares) Credits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.credits))
	copy(out, s.credits)
	return out
}

// Webhooks is a recording fake of coordinator.WebhookNotifier.
type Webhooks struct {
	mu            sync.Mutex
	connected     int
	disconnected  int
	submitted     []string
	statusUpdates []coordinator.StatusMessage
}

func NewWebhooks() *Webhooks { return &Webhooks{} }

func (w *Webhooks) PoolConnected() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected++
}

func (w *Webhooks) PoolDisconnected() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.disconnected++
}

func (w *Webhooks) PoolSubmittedBlock(digestHex string, hashRate float64, minerCount int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitted = append(w.submitted, digestHex)
}

func (w *Webhooks) PoolStatus(status coordinator.StatusMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.statusUpdates = append(w.statusUpdates, status)
}

func (w *Webhooks) ConnectedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

func (w *Webhooks) DisconnectedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disconnected
}

func (w *Webhooks) SubmittedBlocks() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.submitted))
	copy(out, w.submitted)
	return out
}
