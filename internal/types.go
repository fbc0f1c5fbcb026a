package internal

import (
	"sync"
)

// Peer is one connected client session as the hub sees it: an identity and
// a bounded outbound queue drained by the connection's writer.
type Peer struct {
	ID string

	outbound chan []byte
	gone     chan struct{}
	once     sync.Once
}

func newPeer(id string, queueSize int) *Peer {
	return &Peer{
		ID:       id,
		outbound: make(chan []byte, queueSize),
		gone:     make(chan struct{}),
	}
}

// Outbound yields records relayed to this peer, in relay order.
func (p *Peer) Outbound() <-chan []byte {
	return p.outbound
}

// Gone is closed once the peer has been removed from the hub.
func (p *Peer) Gone() <-chan struct{} {
	return p.gone
}

// offer never blocks. It reports false when the queue is full or the peer
// is already gone.
func (p *Peer) offer(record []byte) bool {
	select {
	case <-p.gone:
		return false
	default:
	}

	select {
	case p.outbound <- record:
		return true
	default:
		return false
	}
}

func (p *Peer) leave() {
	p.once.Do(func() { close(p.gone) })
}

type EventType string

const (
	EventTypeStroke EventType = "stroke"
)

// Event is what hub instances exchange over Redis pub/sub.
type Event struct {
	Type     EventType `json:"type"`
	Instance string    `json:"inst"`
	Sender   string    `json:"sender"`
	Payload  string    `json:"payload"`
}
