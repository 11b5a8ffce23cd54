// Package pool implements a fixed size pool of pre-established resources,
// like backend connections.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// New creates a Pool that hands out the given items. The pool never creates
// new items, so its capacity is len(items).
// The name is used for Prometheus metrics.
func New[T any](name string, items []T, logger logrus.FieldLogger) *Pool[T] {
	if logger == nil {
		lr := logrus.New()
		lr.SetLevel(logrus.PanicLevel) // never reached
		logger = lr
	}
	logger = logger.WithField("pool_name", name)
	if len(items) == 0 {
		logger.Warn("Pool created without items, Acquire will block until cancelled")
	}
	p := &Pool[T]{
		name:   name,
		labels: prometheus.Labels{"pool_name": name},
		ch:     make(chan T, len(items)),
		size:   len(items),
		log:    logger,
	}
	for _, item := range items {
		p.ch <- item
	}
	metricCapacity.With(p.labels).Set(float64(len(items)))
	return p
}

// Pool hands out items to one holder at a time.
// An item is obtained by calling Acquire(), and MUST be returned by calling
// Lease.Release().
type Pool[T any] struct {
	name   string
	labels prometheus.Labels
	ch     chan T
	size   int
	log    logrus.FieldLogger

	closeOnce sync.Once
}

// Size returns the fixed capacity of the pool
func (p *Pool[T]) Size() int {
	return p.size
}

// Acquire acquires an item. It will block until one is available or the
// context is done.
// You MUST call Lease.Release() when you are done with the item.
func (p *Pool[T]) Acquire(ctx context.Context) (*Lease[T], error) {
	p.log.Debug("Acquiring item")
	metricWaiting.With(p.labels).Inc()
	t0 := time.Now()
	var item T
	select {
	case item = <-p.ch:
	case <-ctx.Done():
		metricWaiting.With(p.labels).Dec()
		return nil, ctx.Err()
	}
	dt := time.Since(t0)

	metricWaiting.With(p.labels).Dec()
	metricActive.With(p.labels).Inc()
	metricAcquiredTotal.With(p.labels).Inc()
	metricWaitingSeconds.With(p.labels).Observe(dt.Seconds())

	lease := &Lease[T]{
		p:               p,
		value:           item,
		time:            time.Now(),
		acquireDuration: dt,
	}
	p.log.WithField("time_to_acquire", dt).Debug("Acquired item")
	return lease, nil
}

// Close waits until all items have been released and then calls closeFunc
// for every item. It returns the first error returned by closeFunc.
// The pool must not be used after Close.
func (p *Pool[T]) Close(closeFunc func(T) error) error {
	var firstErr error
	p.closeOnce.Do(func() {
		for i := 0; i < p.size; i++ {
			item := <-p.ch
			if closeFunc == nil {
				continue
			}
			if err := closeFunc(item); err != nil {
				p.log.WithError(err).Warn("Error closing pool item")
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		metricCapacity.With(p.labels).Set(0)
	})
	return firstErr
}

// Lease represents the right to use an item of the pool until released.
type Lease[T any] struct {
	p               *Pool[T]
	value           T
	time            time.Time
	acquireDuration time.Duration

	mu       sync.Mutex
	released bool
}

// Value returns the leased item. It must not be used after Release.
func (l *Lease[T]) Value() T {
	return l.value
}

// AcquireDuration returns how long Acquire had to wait for this lease
func (l *Lease[T]) AcquireDuration() time.Duration {
	return l.acquireDuration
}

// Release returns the item to the pool.
// It can safely be called more than once, even from different goroutines.
// It returns how long the Lease was held, or 0 if it had already been released.
func (l *Lease[T]) Release() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return 0
	}
	p := l.p
	p.ch <- l.value
	l.released = true
	dt := time.Since(l.time)
	metricActive.With(p.labels).Dec()
	metricActiveSeconds.With(p.labels).Observe(dt.Seconds())
	p.log.Debug("Released item")
	l.p = nil
	return dt
}
