package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mindcase/mindcase-core/pkg/apperrors"
	"github.com/mindcase/mindcase-core/pkg/metrics"
	"github.com/mindcase/mindcase-core/pkg/models"
	"github.com/mindcase/mindcase-core/pkg/telemetry"
)

// DefaultMaxRetries is the retry budget per mutation: the sixth consecutive
// failure dead-letters the entry.
const DefaultMaxRetries = 5

// defaultKeyPrefix namespaces queue entries within the storage.
const defaultKeyPrefix = "mutation-"

// Handler replays one mutation type against the live services. A nil error
// removes the mutation from the queue.
type Handler func(ctx context.Context, mutation models.QueuedMutation) error

// Queue is the durable mutation queue. Enqueue persists synchronously and
// returns without touching the network; ProcessQueue drains pending entries
// in FIFO enqueue order.
//
// ProcessQueue is not reentrant-safe against itself. The sync engine
// guarantees single-flight drains; producers may Enqueue concurrently with
// an in-progress drain.
type Queue struct {
	mu       sync.Mutex
	nextSeq  uint64
	handlers map[models.MutationType]Handler

	storage    DurableStorage
	prefix     string
	maxRetries int
	online     func() bool
	sink       telemetry.Sink
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithMaxRetries overrides the retry budget.
func WithMaxRetries(n int) Option {
	return func(q *Queue) {
		q.maxRetries = n
	}
}

// WithOnlineProbe supplies the connectivity check consulted at the top of
// every drain pass. Default assumes online.
func WithOnlineProbe(probe func() bool) Option {
	return func(q *Queue) {
		if probe != nil {
			q.online = probe
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

// WithKeyPrefix scopes queue entries, letting several sessions share one
// storage.
func WithKeyPrefix(prefix string) Option {
	return func(q *Queue) {
		q.prefix = prefix
	}
}

// New builds a queue over storage and recovers the enqueue sequence from any
// entries that survived a restart.
func New(ctx context.Context, storage DurableStorage, sink telemetry.Sink, logger *zap.Logger, opts ...Option) (*Queue, error) {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	q := &Queue{
		handlers:   make(map[models.MutationType]Handler),
		storage:    storage,
		prefix:     defaultKeyPrefix,
		maxRetries: DefaultMaxRetries,
		online:     func() bool { return true },
		sink:       sink,
		logger:     logger.Named("outbox"),
	}
	for _, opt := range opts {
		opt(q)
	}

	keys, err := storage.ListKeys(ctx, q.prefix)
	if err != nil {
		return nil, fmt.Errorf("recover outbox state: %w", err)
	}
	for _, key := range keys {
		if seq, ok := q.parseSeq(key); ok && seq >= q.nextSeq {
			q.nextSeq = seq + 1
		}
	}
	if q.metrics != nil {
		q.metrics.QueueDepth.Set(float64(len(keys)))
	}
	if len(keys) > 0 {
		q.logger.Info("recovered pending mutations", zap.Int("count", len(keys)))
	}
	return q, nil
}

// RegisterHandler binds a replay handler to a mutation type. Later
// registrations for the same type replace earlier ones.
func (q *Queue) RegisterHandler(mutationType models.MutationType, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[mutationType] = handler
}

// key layout: <prefix><20-digit sequence>-<mutation id>. The zero-padded
// sequence makes lexicographic key order equal FIFO enqueue order.
func (q *Queue) key(seq uint64, mutationID string) string {
	return fmt.Sprintf("%s%020d-%s", q.prefix, seq, mutationID)
}

func (q *Queue) parseSeq(key string) (uint64, bool) {
	rest := strings.TrimPrefix(key, q.prefix)
	dash := strings.IndexByte(rest, '-')
	if dash <= 0 {
		return 0, false
	}
	seq, err := strconv.ParseUint(rest[:dash], 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// Enqueue durably persists the mutation and returns immediately. The entry
// will leave the queue only through a successful replay or dead-lettering.
func (q *Queue) Enqueue(ctx context.Context, mutation models.QueuedMutation) error {
	data, err := json.Marshal(mutation)
	if err != nil {
		return fmt.Errorf("marshal mutation %s: %w", mutation.ID, err)
	}

	q.mu.Lock()
	seq := q.nextSeq
	q.nextSeq++
	q.mu.Unlock()

	if err := q.storage.SetItem(ctx, q.key(seq, mutation.ID), data); err != nil {
		return fmt.Errorf("persist mutation %s: %w", mutation.ID, err)
	}
	if q.metrics != nil {
		q.metrics.QueueDepth.Inc()
	}
	q.logger.Debug("mutation enqueued",
		zap.String("mutation_id", mutation.ID),
		zap.String("type", string(mutation.Type)))
	return nil
}

// Depth returns the number of persisted mutations.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	keys, err := q.storage.ListKeys(ctx, q.prefix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// ProcessQueue drains all pending mutations sequentially in FIFO order. A
// no-op while offline. Per-mutation failures are swallowed: the entry's
// retry count is bumped (or the entry dead-lettered past the budget) and the
// drain moves on, so one bad mutation never blocks the rest. Every call
// retries all pending entries; there is no backoff schedule between passes.
func (q *Queue) ProcessQueue(ctx context.Context) error {
	if !q.online() {
		q.logger.Debug("skipping drain while offline")
		return nil
	}

	keys, err := q.storage.ListKeys(ctx, q.prefix)
	if err != nil {
		return fmt.Errorf("list pending mutations: %w", err)
	}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.processOne(ctx, key)
	}
	return nil
}

func (q *Queue) processOne(ctx context.Context, key string) {
	data, err := q.storage.GetItem(ctx, key)
	if errors.Is(err, apperrors.ErrNotFound) {
		return // removed since listing
	}
	if err != nil {
		q.logger.Error("failed to load mutation", zap.String("key", key), zap.Error(err))
		return
	}

	var mutation models.QueuedMutation
	if err := json.Unmarshal(data, &mutation); err != nil {
		// A corrupted entry can never replay; drop it rather than wedge the
		// queue forever.
		q.logger.Error("dropping unreadable mutation", zap.String("key", key), zap.Error(err))
		q.remove(ctx, key)
		if q.metrics != nil {
			q.metrics.DeadLettered.Inc()
		}
		return
	}

	q.mu.Lock()
	handler, ok := q.handlers[mutation.Type]
	q.mu.Unlock()

	var replayErr error
	if !ok {
		replayErr = fmt.Errorf("no handler registered for mutation type %q", mutation.Type)
	} else {
		replayErr = handler(ctx, mutation)
	}

	if replayErr == nil {
		q.sink.Record(telemetry.Event{
			EventName: "sync_success",
			TenantID:  payloadTenant(mutation),
			Metadata: map[string]string{
				"type":       string(mutation.Type),
				"mutationId": mutation.ID,
			},
		})
		q.remove(ctx, key)
		if q.metrics != nil {
			q.metrics.DrainSuccess.Inc()
		}
		q.logger.Info("mutation replayed",
			zap.String("mutation_id", mutation.ID),
			zap.String("type", string(mutation.Type)))
		return
	}

	if q.metrics != nil {
		q.metrics.DrainFailure.Inc()
	}
	mutation.RetryCount++
	if mutation.RetryCount > q.maxRetries {
		q.remove(ctx, key)
		if q.metrics != nil {
			q.metrics.DeadLettered.Inc()
		}
		q.logger.Warn("mutation dead-lettered",
			zap.String("mutation_id", mutation.ID),
			zap.String("type", string(mutation.Type)),
			zap.Int("retry_count", mutation.RetryCount),
			zap.Error(replayErr))
		return
	}

	updated, err := json.Marshal(mutation)
	if err != nil {
		q.logger.Error("failed to re-marshal mutation", zap.String("mutation_id", mutation.ID), zap.Error(err))
		return
	}
	if err := q.storage.SetItem(ctx, key, updated); err != nil {
		// The old entry stays with its previous retry count; it is retried
		// again next pass rather than lost.
		q.logger.Error("failed to persist retry count", zap.String("mutation_id", mutation.ID), zap.Error(err))
		return
	}
	q.logger.Debug("mutation replay failed, will retry",
		zap.String("mutation_id", mutation.ID),
		zap.String("type", string(mutation.Type)),
		zap.Int("retry_count", mutation.RetryCount),
		zap.Error(replayErr))
}

func (q *Queue) remove(ctx context.Context, key string) {
	if err := q.storage.RemoveItem(ctx, key); err != nil {
		q.logger.Error("failed to remove mutation", zap.String("key", key), zap.Error(err))
		return
	}
	if q.metrics != nil {
		q.metrics.QueueDepth.Dec()
	}
}

// payloadTenant pulls the tenant id every payload variant carries, for
// telemetry scoping.
func payloadTenant(mutation models.QueuedMutation) string {
	var scoped struct {
		TenantID string `json:"tenantId"`
	}
	_ = json.Unmarshal(mutation.Payload, &scoped)
	return scoped.TenantID
}
