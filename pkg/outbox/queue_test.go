package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mindcase/mindcase-core/pkg/models"
	"github.com/mindcase/mindcase-core/pkg/telemetry"
)

type captureSink struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (s *captureSink) Record(event telemetry.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *captureSink) all() []telemetry.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]telemetry.Event(nil), s.events...)
}

func newTestQueue(t *testing.T, storage DurableStorage, opts ...Option) (*Queue, *captureSink) {
	t.Helper()
	sink := &captureSink{}
	queue, err := New(context.Background(), storage, sink, zap.NewNop(), opts...)
	require.NoError(t, err)
	return queue, sink
}

func mustMutation(t *testing.T, mutationType models.MutationType, tenantID string) models.QueuedMutation {
	t.Helper()
	mutation, err := models.NewMutation(mutationType, models.VerifyFieldPayload{
		TenantID:   tenantID,
		FieldPath:  "identity.dateOfBirth",
		VerifierID: "user-1",
	})
	require.NoError(t, err)
	return mutation
}

func TestQueue_Enqueue_PersistsBeforeReturning(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	queue, _ := newTestQueue(t, storage)

	mutation := mustMutation(t, models.MutationVerifyField, "tenant-1")
	require.NoError(t, queue.Enqueue(ctx, mutation))

	keys, err := storage.ListKeys(ctx, defaultKeyPrefix)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	data, err := storage.GetItem(ctx, keys[0])
	require.NoError(t, err)
	var stored models.QueuedMutation
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, mutation.ID, stored.ID)
	assert.Equal(t, models.MutationVerifyField, stored.Type)
	assert.Zero(t, stored.RetryCount)
}

func TestQueue_ProcessQueue_DrainsFIFO(t *testing.T) {
	ctx := context.Background()
	queue, _ := newTestQueue(t, NewMemoryStorage())

	var replayed []string
	queue.RegisterHandler(models.MutationVerifyField, func(_ context.Context, m models.QueuedMutation) error {
		replayed = append(replayed, m.ID)
		return nil
	})

	var enqueued []string
	for i := 0; i < 5; i++ {
		mutation := mustMutation(t, models.MutationVerifyField, "tenant-1")
		require.NoError(t, queue.Enqueue(ctx, mutation))
		enqueued = append(enqueued, mutation.ID)
	}

	require.NoError(t, queue.ProcessQueue(ctx))

	assert.Equal(t, enqueued, replayed)
	depth, err := queue.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestQueue_ProcessQueue_OfflineIsNoOp(t *testing.T) {
	ctx := context.Background()
	queue, _ := newTestQueue(t, NewMemoryStorage(), WithOnlineProbe(func() bool { return false }))

	var calls int
	queue.RegisterHandler(models.MutationVerifyField, func(context.Context, models.QueuedMutation) error {
		calls++
		return nil
	})
	require.NoError(t, queue.Enqueue(ctx, mustMutation(t, models.MutationVerifyField, "tenant-1")))

	require.NoError(t, queue.ProcessQueue(ctx))

	assert.Zero(t, calls)
	depth, err := queue.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestQueue_ProcessQueue_FailureKeepsEntryAndBumpsRetryCount(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	queue, _ := newTestQueue(t, storage)

	queue.RegisterHandler(models.MutationVerifyField, func(context.Context, models.QueuedMutation) error {
		return errors.New("shard unreachable")
	})
	require.NoError(t, queue.Enqueue(ctx, mustMutation(t, models.MutationVerifyField, "tenant-1")))

	require.NoError(t, queue.ProcessQueue(ctx))

	keys, err := storage.ListKeys(ctx, defaultKeyPrefix)
	require.NoError(t, err)
	require.Len(t, keys, 1, "failed mutation must stay queued")

	data, err := storage.GetItem(ctx, keys[0])
	require.NoError(t, err)
	var stored models.QueuedMutation
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, 1, stored.RetryCount)
}

// One failing mutation must not block the entries behind it.
func TestQueue_ProcessQueue_BadMutationDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	queue, _ := newTestQueue(t, NewMemoryStorage())

	failing := mustMutation(t, models.MutationVerifyField, "tenant-1")
	ok := mustMutation(t, models.MutationVerifyField, "tenant-1")
	require.NoError(t, queue.Enqueue(ctx, failing))
	require.NoError(t, queue.Enqueue(ctx, ok))

	var replayed []string
	queue.RegisterHandler(models.MutationVerifyField, func(_ context.Context, m models.QueuedMutation) error {
		replayed = append(replayed, m.ID)
		if m.ID == failing.ID {
			return errors.New("still broken")
		}
		return nil
	})

	require.NoError(t, queue.ProcessQueue(ctx))

	assert.Equal(t, []string{failing.ID, ok.ID}, replayed, "drain stays FIFO even past a failure")
	depth, err := queue.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth, "only the failing entry remains")
}

func TestQueue_ProcessQueue_DeadLettersAfterBudgetExhausted(t *testing.T) {
	ctx := context.Background()
	queue, _ := newTestQueue(t, NewMemoryStorage())

	var attempts int
	queue.RegisterHandler(models.MutationVerifyField, func(context.Context, models.QueuedMutation) error {
		attempts++
		return errors.New("permanently broken")
	})
	require.NoError(t, queue.Enqueue(ctx, mustMutation(t, models.MutationVerifyField, "tenant-1")))

	// Five failures stay within the budget; the sixth dead-letters.
	for i := 0; i < DefaultMaxRetries; i++ {
		require.NoError(t, queue.ProcessQueue(ctx))
		depth, err := queue.Depth(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, depth, "pass %d must keep the entry", i+1)
	}

	require.NoError(t, queue.ProcessQueue(ctx))

	assert.Equal(t, DefaultMaxRetries+1, attempts)
	depth, err := queue.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth, "sixth failure removes the entry")
}

func TestQueue_ProcessQueue_SuccessEmitsSyncTelemetry(t *testing.T) {
	ctx := context.Background()
	queue, sink := newTestQueue(t, NewMemoryStorage())

	queue.RegisterHandler(models.MutationVerifyField, func(context.Context, models.QueuedMutation) error {
		return nil
	})
	mutation := mustMutation(t, models.MutationVerifyField, "tenant-7")
	require.NoError(t, queue.Enqueue(ctx, mutation))

	require.NoError(t, queue.ProcessQueue(ctx))

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "sync_success", events[0].EventName)
	assert.Equal(t, "tenant-7", events[0].TenantID)
	assert.Equal(t, string(models.MutationVerifyField), events[0].Metadata["type"])
	assert.Equal(t, mutation.ID, events[0].Metadata["mutationId"])
}

func TestQueue_ProcessQueue_MissingHandlerCountsAsFailure(t *testing.T) {
	ctx := context.Background()
	queue, sink := newTestQueue(t, NewMemoryStorage())

	require.NoError(t, queue.Enqueue(ctx, mustMutation(t, models.MutationVerifyField, "tenant-1")))
	require.NoError(t, queue.ProcessQueue(ctx))

	depth, err := queue.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
	assert.Empty(t, sink.all())
}

func TestQueue_ProcessQueue_DropsCorruptedEntries(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	require.NoError(t, storage.SetItem(ctx, defaultKeyPrefix+"00000000000000000000-bad", []byte("{not json")))

	queue, _ := newTestQueue(t, storage)
	require.NoError(t, queue.ProcessQueue(ctx))

	depth, err := queue.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestQueue_New_RecoversSequenceAcrossRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	storage, err := NewFileStorage(dir)
	require.NoError(t, err)
	first, _ := newTestQueue(t, storage)

	before := mustMutation(t, models.MutationVerifyField, "tenant-1")
	require.NoError(t, first.Enqueue(ctx, before))

	// Simulate a restart: fresh storage handle, fresh queue, same directory.
	reopened, err := NewFileStorage(dir)
	require.NoError(t, err)
	second, _ := newTestQueue(t, reopened)

	after := mustMutation(t, models.MutationVerifyField, "tenant-1")
	require.NoError(t, second.Enqueue(ctx, after))

	var replayed []string
	second.RegisterHandler(models.MutationVerifyField, func(_ context.Context, m models.QueuedMutation) error {
		replayed = append(replayed, m.ID)
		return nil
	})

	require.NoError(t, second.ProcessQueue(ctx))

	assert.Equal(t, []string{before.ID, after.ID}, replayed,
		"pre-restart mutations replay first, in original order")
}

func TestQueue_KeyPrefix_IsolatesSessions(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	alpha, _ := newTestQueue(t, storage, WithKeyPrefix("session-a-"))
	beta, _ := newTestQueue(t, storage, WithKeyPrefix("session-b-"))

	require.NoError(t, alpha.Enqueue(ctx, mustMutation(t, models.MutationVerifyField, "tenant-1")))

	alphaDepth, err := alpha.Depth(ctx)
	require.NoError(t, err)
	betaDepth, err := beta.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, alphaDepth)
	assert.Zero(t, betaDepth)
}
