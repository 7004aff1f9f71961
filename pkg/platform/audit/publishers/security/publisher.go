// Package security provides a lossy, non-blocking audit publisher for
// security events.
//
// Publisher never blocks the request path and never fails the caller: events
// land in a bounded ring buffer and a background flusher persists them in
// batches. Under sustained pressure the oldest events are dropped first.
//
// Use for: auth_failed, rate_limit_exceeded, threshold_update_rejected,
// detection_rejected.
package security

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "linkage/pkg/platform/audit"
)

const (
	// DefaultFlushInterval is how often the background flusher drains the buffer.
	DefaultFlushInterval = 1 * time.Second
	// DefaultBatchSize caps how many events one store append cycle handles.
	DefaultBatchSize = 100
	// flushTimeout bounds a single drain cycle so a stalled store cannot
	// wedge shutdown.
	flushTimeout = 5 * time.Second
)

// Publisher emits security events asynchronously through a ring buffer.
type Publisher struct {
	store   audit.Store
	buffer  *RingBuffer
	logger  *slog.Logger
	metrics *Metrics

	flushInterval time.Duration
	batchSize     int

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for flush error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithBufferCapacity sets the ring buffer capacity.
func WithBufferCapacity(capacity int) Option {
	return func(p *Publisher) {
		p.buffer = NewRingBuffer(capacity)
	}
}

// WithFlushInterval sets how often buffered events are persisted.
func WithFlushInterval(interval time.Duration) Option {
	return func(p *Publisher) {
		if interval > 0 {
			p.flushInterval = interval
		}
	}
}

// WithBatchSize sets the maximum batch drained per flush cycle.
func WithBatchSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// New creates a security publisher and starts its background flusher.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:         store,
		buffer:        NewRingBuffer(DefaultBufferCapacity),
		flushInterval: DefaultFlushInterval,
		batchSize:     DefaultBatchSize,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.run()
	return p
}

// Emit enqueues a security event. It never blocks and never returns an
// error; when the buffer is full the oldest event is evicted to make room.
func (p *Publisher) Emit(event audit.SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Severity == "" {
		event.Severity = audit.SeverityInfo
	}

	evicted := p.buffer.Enqueue(event)
	if p.metrics != nil {
		if evicted {
			p.metrics.IncDropped()
		}
		p.metrics.IncEnqueued()
		p.metrics.SetBufferLen(p.buffer.Len())
	}
}

// Close stops the flusher after a final drain. Safe to call multiple times.
func (p *Publisher) Close() error {
	p.once.Do(func() {
		close(p.stop)
		<-p.done
	})
	return nil
}

func (p *Publisher) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			p.flush()
			return
		case <-ticker.C:
			p.flush()
		}
	}
}

// flush drains the buffer in batches until it is empty. Persistence
// failures are logged and counted; failed events are not retried.
func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	for {
		batch := p.buffer.DequeueBatch(p.batchSize)
		if len(batch) == 0 {
			break
		}
		for _, event := range batch {
			if err := p.store.Append(ctx, event.ToEvent()); err != nil {
				if p.metrics != nil {
					p.metrics.IncPersistFailures()
				}
				if p.logger != nil {
					p.logger.Error("security audit flush failed",
						"action", event.Action,
						"error", err,
					)
				}
			}
		}
	}

	if p.metrics != nil {
		p.metrics.SetBufferLen(p.buffer.Len())
	}
}
