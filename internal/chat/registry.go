package chat

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// DeliveryQueueCapacity is the number of messages a peer's delivery queue
// holds before broadcasts to that peer start waiting.
const DeliveryQueueCapacity = 128

// Registry is the shared directory of connected peers.
//
//go:generate mockgen -source=registry.go -destination=../mocks/mock_registry.go -package=mocks
type Registry interface {
	// Register starts delivery to conn under addr and returns the peer handle.
	Register(addr, username string, conn Conn) *Peer
	// Broadcast enqueues msg for every registered peer except origin.
	Broadcast(ctx context.Context, origin string, msg Message)
	// Deregister removes addr. Removing an unknown address is a no-op.
	Deregister(addr string)
}

// Hub is the in-memory Registry. It maps each connection address to that
// peer's mailbox and runs one delivery worker per registration.
//
// Broadcasts fan out sequentially over a snapshot of the map and wait for
// room in each recipient's queue in turn, so a full queue delays delivery
// to every recipient visited after it.
type Hub struct {
	log   *slog.Logger
	mu     sync.RWMutex
	peers  map[string]*mailbox
	closed bool
	wg     sync.WaitGroup
}

// NewHub creates an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:   log,
		peers: make(map[string]*mailbox),
	}
}

var _ Registry = (*Hub)(nil)

// Register allocates a delivery queue for addr, starts its worker writing to
// conn and returns a Peer reading from conn. A previous registration under
// the same address is replaced and its worker drains and exits.
//
// After Close the connection is not registered: the returned Peer still
// reads from conn but receives no broadcasts.
func (h *Hub) Register(addr, username string, conn Conn) *Peer {
	box := newMailbox(addr, DeliveryQueueCapacity)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		h.log.Warn("Registration refused, hub closed", "addr", addr, "username", username)
		return &Peer{Username: username, Inbound: conn}
	}
	prev, replaced := h.peers[addr]
	h.peers[addr] = box
	count := len(h.peers)
	h.wg.Add(1)
	h.mu.Unlock()

	if replaced {
		prev.detach()
		h.log.Warn("Replaced existing registration", "addr", addr)
	}

	worker := newDeliveryWorker(box, conn, h.log)
	go func() {
		defer h.wg.Done()
		worker.run()
	}()

	h.log.Info("Peer registered", "addr", addr, "username", username, "peers", count)
	return &Peer{Username: username, Inbound: conn}
}

// Broadcast delivers msg to every peer except the one registered at origin.
// A recipient whose queue is detached is removed from the Hub and the
// broadcast carries on. When ctx ends the remaining recipients are skipped.
func (h *Hub) Broadcast(ctx context.Context, origin string, msg Message) {
	for addr, box := range h.snapshot(origin) {
		err := box.send(ctx, msg)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrDetached) {
			h.log.Debug("Broadcast abandoned", "origin", origin, "error", err)
			return
		}
		h.log.Warn("Failed to send message", "addr", addr, "error", err)
		h.remove(addr, box)
	}
}

// Deregister removes addr and detaches its queue so the worker exits once
// it has written what is already queued.
func (h *Hub) Deregister(addr string) {
	h.mu.Lock()
	box, ok := h.peers[addr]
	if ok {
		delete(h.peers, addr)
	}
	count := len(h.peers)
	h.mu.Unlock()

	if ok {
		box.detach()
		h.log.Info("Peer deregistered", "addr", addr, "peers", count)
	}
}

// Len returns the number of registered peers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Addresses returns the registered addresses in sorted order.
func (h *Hub) Addresses() []string {
	h.mu.RLock()
	addrs := lo.Keys(h.peers)
	h.mu.RUnlock()

	sort.Strings(addrs)
	return addrs
}

// Close detaches every registration and refuses later ones. Workers finish
// writing what is queued and exit; use Wait to block until they have.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	boxes := lo.Values(h.peers)
	h.peers = make(map[string]*mailbox)
	h.mu.Unlock()

	for _, box := range boxes {
		box.detach()
	}
	h.log.Info("Hub closed", "detached", len(boxes))
}

// Wait blocks until every delivery worker has exited or ctx ends.
func (h *Hub) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// snapshot copies the current registrations, leaving out origin.
func (h *Hub) snapshot(origin string) map[string]*mailbox {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return lo.OmitByKeys(h.peers, []string{origin})
}

// remove deletes addr only while it still points at box, so a newer
// registration under the same address survives.
func (h *Hub) remove(addr string, box *mailbox) {
	h.mu.Lock()
	current, ok := h.peers[addr]
	if ok && current == box {
		delete(h.peers, addr)
	}
	h.mu.Unlock()

	box.detach()
}
