package services

import (
	"sync"

	"go.uber.org/zap"
)

// CartChanged is published after every successful cart mutation
type CartChanged struct {
	Owner string  `json:"-"`
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

// CartNotifier fans cart changes out to subscribers of the same owner.
// Each subscriber sees the latest event; a slow reader skips intermediate ones.
type CartNotifier struct {
	mu     sync.RWMutex
	subs   map[string]map[chan CartChanged]struct{}
	closed bool
	logger *zap.Logger
}

// NewCartNotifier creates an empty notifier
func NewCartNotifier(logger *zap.Logger) *CartNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartNotifier{
		subs:   make(map[string]map[chan CartChanged]struct{}),
		logger: logger,
	}
}

// Subscribe registers for changes to owner's cart. The returned func unsubscribes
// and closes the channel; it is safe to call more than once. The channel is also
// closed by Close.
func (n *CartNotifier) Subscribe(owner string) (<-chan CartChanged, func()) {
	ch := make(chan CartChanged, 1)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if n.subs[owner] == nil {
		n.subs[owner] = make(map[chan CartChanged]struct{})
	}
	n.subs[owner][ch] = struct{}{}
	n.mu.Unlock()

	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if _, ok := n.subs[owner][ch]; !ok {
			return
		}
		delete(n.subs[owner], ch)
		if len(n.subs[owner]) == 0 {
			delete(n.subs, owner)
		}
		close(ch)
	}
}

// Close ends every subscription so long-lived streams can finish during shutdown
func (n *CartNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, chans := range n.subs {
		for ch := range chans {
			close(ch)
		}
	}
	n.subs = make(map[string]map[chan CartChanged]struct{})
	n.closed = true
}

// Publish delivers evt to every subscriber of evt.Owner without blocking
func (n *CartNotifier) Publish(evt CartChanged) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.subs[evt.Owner] {
		select {
		case ch <- evt:
			continue
		default:
		}

		// Replace the stale event with the newest one
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- evt:
		default:
			n.logger.Debug("dropped cart event", zap.String("owner", evt.Owner))
		}
	}
}

// Subscribers returns the number of live subscriptions for owner
func (n *CartNotifier) Subscribers(owner string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs[owner])
}
