package store

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/partyserver/logger"
	"github.com/wfunc/partyserver/room"
)

// Publisher mirrors registry changes into a RoomIndex off the room lock.
// Pending writes coalesce per room, so the index always ends on the latest
// summary.
type Publisher struct {
	index   RoomIndex
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*room.Summary // nil value = delete
	notify  chan struct{}
}

func NewPublisher(index RoomIndex) *Publisher {
	return &Publisher{
		index:   index,
		timeout: 2 * time.Second,
		pending: make(map[string]*room.Summary),
		notify:  make(chan struct{}, 1),
	}
}

// Publish queues s; it never blocks.
func (p *Publisher) Publish(s room.Summary) {
	p.mu.Lock()
	p.pending[s.ID] = &s
	p.mu.Unlock()
	p.wake()
}

// Remove queues a delete for roomID.
func (p *Publisher) Remove(roomID string) {
	p.mu.Lock()
	p.pending[roomID] = nil
	p.mu.Unlock()
	p.wake()
}

func (p *Publisher) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Run writes queued changes until ctx is done, then flushes once more.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-p.notify:
			p.Flush()
		case <-ctx.Done():
			p.Flush()
			return
		}
	}
}

// Flush writes everything queued so far.
func (p *Publisher) Flush() {
	p.mu.Lock()
	batch := p.pending
	p.pending = make(map[string]*room.Summary)
	p.mu.Unlock()

	for id, s := range batch {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		var err error
		if s == nil {
			err = p.index.Delete(ctx, id)
		} else {
			err = p.index.Put(ctx, *s)
		}
		cancel()
		if err != nil {
			logger.Log.Warnw("room index write failed", "room", id, "error", err)
		}
	}
}
