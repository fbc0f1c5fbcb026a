package internal

import (
	"errors"
	"fmt"
	"sync"

	"github.com/segmentio/ksuid"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slog"
)

var (
	ErrHubFull    = errors.New("hub is at capacity")
	ErrPeerExists = errors.New("peer already connected")
)

// Hub owns the registry of connected peers and relays each inbound record
// to every peer but its sender.
type Hub struct {
	logger    *slog.Logger
	capacity  int
	queueSize int

	lock  sync.RWMutex
	peers map[string]*Peer
}

// NewHub returns an empty hub. A capacity of zero or less means unbounded.
func NewHub(logger *slog.Logger, capacity, queueSize int) *Hub {
	if queueSize < 1 {
		queueSize = 1
	}

	return &Hub{
		logger:    logger,
		capacity:  capacity,
		queueSize: queueSize,
		peers:     make(map[string]*Peer),
	}
}

// NewPeerID issues an identifier unique for the lifetime of a connection.
func (h *Hub) NewPeerID() (string, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("issue peer id: %w", err)
	}

	return id.String(), nil
}

// Full reports whether a new peer would be rejected right now.
func (h *Hub) Full() bool {
	if h.capacity <= 0 {
		return false
	}

	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.peers) >= h.capacity
}

// Connect registers a peer. New peers get no history.
func (h *Hub) Connect(id string) (*Peer, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if _, ok := h.peers[id]; ok {
		return nil, fmt.Errorf("%w: %v", ErrPeerExists, id)
	}

	if h.capacity > 0 && len(h.peers) >= h.capacity {
		return nil, ErrHubFull
	}

	peer := newPeer(id, h.queueSize)
	h.peers[id] = peer

	h.logger.Info("peer connected", slog.String("peer", id), slog.Int("peers", len(h.peers)))
	return peer, nil
}

// Disconnect removes a peer and reports whether it was present. Records
// already queued to other peers are unaffected.
func (h *Hub) Disconnect(id string) bool {
	h.lock.Lock()
	peer, ok := h.peers[id]
	if ok {
		delete(h.peers, id)
	}
	count := len(h.peers)
	h.lock.Unlock()

	if !ok {
		return false
	}

	peer.leave()
	h.logger.Info("peer disconnected", slog.String("peer", id), slog.Int("peers", count))
	return true
}

// Relay queues record, unmodified, for every connected peer except sender
// and returns how many peers accepted it. A peer whose queue is full is
// treated as gone and removed. Relay never blocks on a peer.
func (h *Hub) Relay(sender string, record []byte) int {
	h.lock.RLock()
	peers := maps.Values(h.peers)
	h.lock.RUnlock()

	delivered := 0
	for _, peer := range peers {
		if peer.ID == sender {
			continue
		}

		if peer.offer(record) {
			delivered++
			continue
		}

		if h.Disconnect(peer.ID) {
			h.logger.Warn("dropped stalled peer", slog.String("peer", peer.ID), slog.String("sender", sender))
		}
	}

	return delivered
}

// Len is the number of connected peers.
func (h *Hub) Len() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.peers)
}

// Close disconnects every peer.
func (h *Hub) Close() {
	h.lock.Lock()
	peers := h.peers
	h.peers = make(map[string]*Peer)
	h.lock.Unlock()

	for _, peer := range peers {
		peer.leave()
	}
}
