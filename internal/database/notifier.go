package database

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// watchBuffer bounds how far a watcher may lag before changes are dropped
const watchBuffer = 64

// Notifier fans committed changes out to watchers.
// Backends embed it and call Publish after a successful commit.
type Notifier struct {
	mu     sync.Mutex
	subs   map[int]chan Change
	nextID int
	closed bool
}

// Watch registers a watcher. The channel is closed when ctx ends or the
// notifier is closed.
func (n *Notifier) Watch(ctx context.Context) <-chan Change {
	ch := make(chan Change, watchBuffer)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		close(ch)
		return ch
	}
	if n.subs == nil {
		n.subs = make(map[int]chan Change)
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
	}()

	return ch
}

// Publish delivers c to every watcher without blocking.
func (n *Notifier) Publish(c Change) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for id, ch := range n.subs {
		select {
		case ch <- c:
		default:
			log.Warn().
				Int("watcher", id).
				Str("key", c.Key).
				Msg("database: watcher is lagging, change dropped")
		}
	}
}

// Close closes every watcher channel.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.closed = true
	for id, ch := range n.subs {
		delete(n.subs, id)
		close(ch)
	}
}
