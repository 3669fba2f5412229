package services

import (
	"sync"
	"time"
)

// DefaultRedirectDelay is how long the result page waits before moving to the order
const DefaultRedirectDelay = 5 * time.Second

// ScheduledRedirect is a pending delayed navigation
type ScheduledRedirect struct {
	mu       sync.Mutex
	timer    *time.Timer
	canceled bool
	fired    bool
	done     chan struct{}
	stopped  chan struct{}
	onDone   func()
}

// Cancel stops the redirect. It returns true if fn has not run and never will.
func (r *ScheduledRedirect) Cancel() bool {
	r.mu.Lock()
	if r.fired {
		r.mu.Unlock()
		return false
	}
	if r.canceled {
		r.mu.Unlock()
		return true
	}
	r.canceled = true
	r.timer.Stop()
	close(r.stopped)
	r.mu.Unlock()

	r.onDone()
	return true
}

// Done is closed once fn has finished running
func (r *ScheduledRedirect) Done() <-chan struct{} {
	return r.done
}

// Stopped is closed when the redirect is canceled before fn runs
func (r *ScheduledRedirect) Stopped() <-chan struct{} {
	return r.stopped
}

// Redirector schedules delayed redirects and can cancel all of them at shutdown
type Redirector struct {
	mu      sync.Mutex
	pending map[*ScheduledRedirect]struct{}
}

func NewRedirector() *Redirector {
	return &Redirector{pending: make(map[*ScheduledRedirect]struct{})}
}

// Schedule runs fn after d unless the returned redirect is canceled first
func (rd *Redirector) Schedule(d time.Duration, fn func()) *ScheduledRedirect {
	r := &ScheduledRedirect{done: make(chan struct{}), stopped: make(chan struct{})}
	r.onDone = func() { rd.forget(r) }

	rd.mu.Lock()
	rd.pending[r] = struct{}{}
	rd.mu.Unlock()

	r.mu.Lock()
	r.timer = time.AfterFunc(d, func() {
		r.mu.Lock()
		if r.canceled {
			r.mu.Unlock()
			return
		}
		r.fired = true
		r.mu.Unlock()

		fn()
		close(r.done)
		r.onDone()
	})
	r.mu.Unlock()

	return r
}

// Pending returns the number of redirects that have neither fired nor been canceled
func (rd *Redirector) Pending() int {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	return len(rd.pending)
}

// CancelAll cancels every pending redirect
func (rd *Redirector) CancelAll() {
	rd.mu.Lock()
	pending := make([]*ScheduledRedirect, 0, len(rd.pending))
	for r := range rd.pending {
		pending = append(pending, r)
	}
	rd.mu.Unlock()

	for _, r := range pending {
		r.Cancel()
	}
}

func (rd *Redirector) forget(r *ScheduledRedirect) {
	rd.mu.Lock()
	delete(rd.pending, r)
	rd.mu.Unlock()
}
