package protocol

import (
	"sync"
	"sync/atomic"

	"github.com/zeusync/cellsync/internal/core/models"
)

// Peer is the transport side of one connection. Enqueue must not block.
type Peer interface {
	Enqueue(frame []byte) error
}

// Hub maps connection ids to transport peers and is the Send primitive used
// by the core. It is safe for concurrent use.
type Hub struct {
	adapter *Adapter
	nextID  atomic.Uint64

	mu    sync.RWMutex
	peers map[models.ConnectionID]Peer

	sent    atomic.Uint64
	dropped atomic.Uint64
}

func NewHub(adapter *Adapter) *Hub {
	return &Hub{adapter: adapter, peers: make(map[models.ConnectionID]Peer)}
}

func (h *Hub) Adapter() *Adapter { return h.adapter }

// Attach allocates a connection id for peer.
func (h *Hub) Attach(peer Peer) models.ConnectionID {
	id := models.ConnectionID(h.nextID.Add(1))
	h.mu.Lock()
	h.peers[id] = peer
	h.mu.Unlock()
	return id
}

func (h *Hub) Detach(conn models.ConnectionID) {
	h.mu.Lock()
	delete(h.peers, conn)
	h.mu.Unlock()
}

// Send encodes msg and enqueues it on conn's peer.
func (h *Hub) Send(conn models.ConnectionID, msg Message) error {
	h.mu.RLock()
	peer, ok := h.peers[conn]
	h.mu.RUnlock()
	if !ok {
		h.dropped.Add(1)
		return ErrPeerNotFound
	}

	frame, err := h.adapter.Encode(msg)
	if err != nil {
		h.dropped.Add(1)
		return err
	}
	if err = peer.Enqueue(frame); err != nil {
		h.dropped.Add(1)
		return err
	}
	h.sent.Add(1)
	return nil
}

// HubStats are cumulative send counters.
type HubStats struct {
	Peers   int    `json:"peers"`
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
}

func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	n := len(h.peers)
	h.mu.RUnlock()
	return HubStats{Peers: n, Sent: h.sent.Load(), Dropped: h.dropped.Load()}
}

// Queue is a bounded outbound frame queue shared by the transports.
type Queue struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{frames: make(chan []byte, size), done: make(chan struct{})}
}

// Enqueue adds a frame without blocking.
func (q *Queue) Enqueue(frame []byte) error {
	select {
	case <-q.done:
		return ErrPeerClosed
	default:
	}
	select {
	case q.frames <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

// Frames is drained by the transport writer.
func (q *Queue) Frames() <-chan []byte { return q.frames }

// Done is closed by Close.
func (q *Queue) Done() <-chan struct{} { return q.done }

func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}
