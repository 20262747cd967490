// Package syncengine tracks the tri-state sync status and drains the
// durable mutation queue when connectivity returns.
package syncengine

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mindcase/mindcase-core/pkg/apperrors"
	"github.com/mindcase/mindcase-core/pkg/metrics"
	"github.com/mindcase/mindcase-core/pkg/models"
	"github.com/mindcase/mindcase-core/pkg/outbox"
)

// Status is the caller-visible sync state.
type Status string

const (
	StatusSynced  Status = "synced"
	StatusSaving  Status = "saving"
	StatusOffline Status = "offline"
)

// statusGaugeValue maps statuses onto the Prometheus gauge.
func statusGaugeValue(s Status) float64 {
	switch s {
	case StatusOffline:
		return 0
	case StatusSaving:
		return 1
	default:
		return 2
	}
}

// Action is one optimistic user write. Apply performs the synchronous
// attempt; Mutation builds the queue entry used when the attempt cannot
// reach the store. The UI shows success as soon as Do returns nil; the
// status stream communicates whether the write is committed or pending.
type Action struct {
	TenantID string
	Apply    func(ctx context.Context) error
	Mutation func() (models.QueuedMutation, error)
}

// Engine observes connectivity, runs optimistic actions, and drains the
// outbox on reconnect. Drains are single-flight: concurrent triggers share
// one pass.
type Engine struct {
	queue *outbox.Queue
	conn  Connectivity

	mu          sync.Mutex
	status      Status
	listeners   []func(Status)
	unsubscribe func()

	drains  singleflight.Group
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New builds an engine over the queue and connectivity signal. metrics may
// be nil.
func New(queue *outbox.Queue, conn Connectivity, m *metrics.Metrics, logger *zap.Logger) *Engine {
	return &Engine{
		queue:   queue,
		conn:    conn,
		status:  StatusSynced,
		metrics: m,
		logger:  logger.Named("sync-engine"),
	}
}

// Start registers the reconnect listener and derives the initial status.
// Idempotent: a second Start without Stop is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.unsubscribe != nil {
		e.mu.Unlock()
		return
	}
	e.unsubscribe = e.conn.Subscribe(func(online bool) {
		if online {
			go e.flushOnReconnect(ctx)
		} else {
			e.setStatus(StatusOffline)
		}
	})
	e.mu.Unlock()

	if e.conn.Online() {
		e.setStatus(StatusSynced)
	} else {
		e.setStatus(StatusOffline)
	}
}

// Stop unsubscribes from the connectivity signal.
func (e *Engine) Stop() {
	e.mu.Lock()
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Status returns the current tri-state status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// OnStatusChange registers a listener for status transitions.
func (e *Engine) OnStatusChange(listener func(Status)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, listener)
}

func (e *Engine) setStatus(status Status) {
	e.mu.Lock()
	if e.status == status {
		e.mu.Unlock()
		return
	}
	e.status = status
	listeners := append(([]func(Status))(nil), e.listeners...)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.SyncStatus.Set(statusGaugeValue(status))
	}
	for _, l := range listeners {
		l(status)
	}
}

func (e *Engine) flushOnReconnect(ctx context.Context) {
	e.logger.Info("connectivity restored, flushing outbox")
	if err := e.Flush(ctx); err != nil {
		e.logger.Error("flush after reconnect failed", zap.Error(err))
	}
}

// Flush drains the outbox once. Concurrent calls share a single drain pass,
// which keeps ProcessQueue single-flight as its contract requires.
func (e *Engine) Flush(ctx context.Context) error {
	e.setStatus(StatusSaving)
	_, err, _ := e.drains.Do("drain", func() (any, error) {
		return nil, e.queue.ProcessQueue(ctx)
	})
	if e.conn.Online() {
		e.setStatus(StatusSynced)
	} else {
		e.setStatus(StatusOffline)
	}
	return err
}

// Do runs one optimistic action. While online it attempts the write
// directly; a transient failure (or being offline) persists the action's
// mutation for later replay and reports optimistic success. Permanent errors
// (validation, duplicate, not-found) surface synchronously and are never
// queued.
func (e *Engine) Do(ctx context.Context, action Action) error {
	e.setStatus(StatusSaving)

	if e.conn.Online() {
		err := action.Apply(ctx)
		if err == nil {
			e.setStatus(StatusSynced)
			return nil
		}
		if !apperrors.IsTransient(err) {
			if e.conn.Online() {
				e.setStatus(StatusSynced)
			} else {
				e.setStatus(StatusOffline)
			}
			return err
		}
		e.logger.Warn("write failed transiently, queueing for replay",
			zap.String("tenant_id", action.TenantID),
			zap.Error(err))
	}

	mutation, err := action.Mutation()
	if err != nil {
		e.setStatus(StatusOffline)
		return err
	}
	if err := e.queue.Enqueue(ctx, mutation); err != nil {
		e.setStatus(StatusOffline)
		return err
	}
	e.setStatus(StatusOffline)
	return nil
}
