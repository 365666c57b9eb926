// Package webhook implements the coordinator's outbound side-channel
// notifications (spec.md §6): poolConnected, poolDisconnected,
// poolSubmittedBlock and poolStatus, each POSTed as JSON to a configured
// URL. No pack library supplies an HTTP client with the shape this needs,
// so this is a thin net/http wrapper (see DESIGN.md); every other piece of
// this package — the idempotency key, structured logging of delivery
// failures — follows the teacher's conventions.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/pborman/uuid"

	"github.com/ironforge-pool/poolcoordinator/internal/coordinator"
	"github.com/ironforge-pool/poolcoordinator/internal/log"
)

// Endpoints carries the four notification URLs; any may be empty, in which
// case that notification is a no-op.
type Endpoints struct {
	PoolConnected      string
	PoolDisconnected   string
	PoolSubmittedBlock string
	PoolStatus         string
}

// Notifier implements coordinator.WebhookNotifier by POSTing a JSON
// envelope to the configured endpoint for each event. Delivery failures
// are logged and otherwise swallowed: a webhook outage must never block
// the coordinator's executor.
type Notifier struct {
	mu        sync.RWMutex
	endpoints Endpoints

	client *http.Client
	log    *log.Logger
}

// New returns a Notifier posting to endpoints with a bounded per-request
// timeout.
func New(endpoints Endpoints) *Notifier {
	return &Notifier{
		endpoints: endpoints,
		client:    &http.Client{Timeout: 5 * time.Second},
		log:       log.New("component", "webhook"),
	}
}

// SetEndpoints replaces the notification URLs in effect, letting a config
// hot-reload take effect without restarting the coordinator.
func (n *Notifier) SetEndpoints(endpoints Endpoints) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.endpoints = endpoints
}

func (n *Notifier) endpoint(pick func(Endpoints) string) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return pick(n.endpoints)
}

type envelope struct {
	Event          string      `json:"event"`
	IdempotencyKey string      `json:"idempotencyKey"`
	Payload        interface{} `json:"payload,omitempty"`
}

func (n *Notifier) post(url, event string, payload interface{}) {
	if url == "" {
		return
	}
	body, err := json.Marshal(envelope{
		Event:          event,
		IdempotencyKey: uuid.New(),
		Payload:        payload,
	})
	if err != nil {
		n.log.Error("webhook: marshaling payload", "event", event, "err", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.client.Timeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			n.log.Error("webhook: building request", "event", event, "err", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			n.log.Warn("webhook: delivery failed", "event", event, "err", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			n.log.Warn("webhook: non-2xx response", "event", event, "status", resp.StatusCode)
		}
	}()
}

func (n *Notifier) PoolConnected() {
	n.post(n.endpoint(func(e Endpoints) string { return e.PoolConnected }), "poolConnected", nil)
}

func (n *Notifier) PoolDisconnected() {
	n.post(n.endpoint(func(e Endpoints) string { return e.PoolDisconnected }), "poolDisconnected", nil)
}

func (n *Notifier) PoolSubmittedBlock(digestHex string, hashRate float64, minerCount int) {
	n.post(n.endpoint(func(e Endpoints) string { return e.PoolSubmittedBlock }), "poolSubmittedBlock", map[string]interface{}{
		"digest":     digestHex,
		"hashRate":   hashRate,
		"minerCount": minerCount,
	})
}

func (n *Notifier) PoolStatus(status coordinator.StatusMessage) {
	n.post(n.endpoint(func(e Endpoints) string { return e.PoolStatus }), "poolStatus", status)
}
