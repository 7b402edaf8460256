// Package limiter bounds concurrent operations with named semaphores.
package limiter

import (
	"context"
	"sync"
	"time"

	"codescope/internal/errs"
)

// Limiter maintains one bounded semaphore per operation class.
type Limiter struct {
	mu    sync.RWMutex
	semas map[string]chan struct{}
}

// Permit is a scoped acquisition. Release must be called on every exit path;
// it is safe to call more than once.
type Permit struct {
	release func()
	once    sync.Once
}

// Release returns the permit to its semaphore.
func (p *Permit) Release() {
	if p == nil {
		return
	}
	p.once.Do(p.release)
}

// New creates a limiter with the given class widths. Classes not listed are
// unknown and always denied.
func New(widths map[string]int) *Limiter {
	l := &Limiter{semas: make(map[string]chan struct{}, len(widths))}
	for name, width := range widths {
		if width < 1 {
			width = 1
		}
		l.semas[name] = make(chan struct{}, width)
	}
	return l
}

// CheckAllowed reports immediately whether a permit for the class is
// available, without acquiring it.
func (l *Limiter) CheckAllowed(class string) error {
	l.mu.RLock()
	sema, ok := l.semas[class]
	l.mu.RUnlock()
	if !ok {
		return errs.E(errs.KindResourceExhausted, class, "unknown operation class")
	}
	if len(sema) == cap(sema) {
		return &errs.Error{
			Kind:       errs.KindResourceExhausted,
			Op:         class,
			Msg:        "all permits in use",
			RetryAfter: time.Second,
		}
	}
	return nil
}

// Acquire blocks until a permit is available or ctx is cancelled.
func (l *Limiter) Acquire(ctx context.Context, class string) (*Permit, error) {
	l.mu.RLock()
	sema, ok := l.semas[class]
	l.mu.RUnlock()
	if !ok {
		return nil, errs.E(errs.KindResourceExhausted, class, "unknown operation class")
	}
	select {
	case sema <- struct{}{}:
		return &Permit{release: func() { <-sema }}, nil
	case <-ctx.Done():
		return nil, errs.Wrap(errs.KindCancelled, class, ctx.Err())
	}
}

// InUse returns how many permits of the class are currently held.
func (l *Limiter) InUse(class string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if sema, ok := l.semas[class]; ok {
		return len(sema)
	}
	return 0
}
