package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduling/internal/model"
	"github.com/jwalitptl/clinic-scheduling/internal/repository"
	"github.com/jwalitptl/clinic-scheduling/internal/repository/memory"
	"github.com/jwalitptl/clinic-scheduling/pkg/logger"
	"github.com/jwalitptl/clinic-scheduling/pkg/messaging"
	"github.com/jwalitptl/clinic-scheduling/pkg/metrics"
)

type fakeBroker struct {
	mu       sync.Mutex
	failures int
	sent     []messaging.Message
}

func (b *fakeBroker) Publish(_ context.Context, msg messaging.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures > 0 {
		b.failures--
		return errors.New("broker unavailable")
	}
	b.sent = append(b.sent, msg)
	return nil
}

func (b *fakeBroker) Close() error { return nil }

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
		Topic:         "appointments",
		Retention:     time.Hour,
	}
}

func setup(t *testing.T, broker messaging.Broker) (*OutboxProcessor, *repository.Store) {
	t.Helper()
	repos := memory.NewStore().Repositories()
	p, err := NewOutboxProcessor(repos.Tx, repos.Outbox, broker, testConfig(), logger.Nop(), metrics.New("test"))
	require.NoError(t, err)
	return p, repos
}

func enqueue(t *testing.T, repos *repository.Store) *model.OutboxEvent {
	t.Helper()
	event := &model.OutboxEvent{
		EventType:   model.EventAppointmentBooked,
		AggregateID: uuid.New(),
		Payload:     json.RawMessage(`{"to":"PENDING"}`),
	}
	require.NoError(t, repos.Outbox.Create(context.Background(), event))
	return event
}

func TestProcessBatchPublishesAndMarksProcessed(t *testing.T) {
	broker := &fakeBroker{}
	p, repos := setup(t, broker)
	event := enqueue(t, repos)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, broker.sent, 1)
	assert.Equal(t, "appointments", broker.sent[0].Topic)
	assert.Equal(t, event.AggregateID.String(), broker.sent[0].Key)
	assert.Equal(t, model.EventAppointmentBooked, broker.sent[0].Type)

	pending, err := repos.Outbox.GetPendingEventsWithLock(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessBatchRetriesWithinPoll(t *testing.T) {
	broker := &fakeBroker{failures: 1}
	p, repos := setup(t, broker)
	enqueue(t, repos)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, broker.sent, 1)
}

func TestProcessBatchDefersThenFails(t *testing.T) {
	broker := &fakeBroker{failures: 100}
	p, repos := setup(t, broker)
	enqueue(t, repos)
	ctx := context.Background()
	// retry_at lands in the past so the event is due again immediately
	p.now = func() time.Time { return time.Now().UTC().Add(-time.Hour) }

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	due, err := repos.Outbox.GetPendingEventsWithLock(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, model.OutboxStatusRetry, due[0].Status)
	assert.Equal(t, 1, due[0].RetryCount)
	require.NotNil(t, due[0].ErrorMessage)

	_, err = p.ProcessBatch(ctx)
	require.NoError(t, err)

	due, err = repos.Outbox.GetPendingEventsWithLock(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, due, "failed events are not picked up again")
	assert.Empty(t, broker.sent)
}

// blockingBroker holds the first Publish until release is closed.
type blockingBroker struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	fakeBroker
}

func newBlockingBroker() *blockingBroker {
	return &blockingBroker{entered: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingBroker) Publish(ctx context.Context, msg messaging.Message) error {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.entered)
		<-b.release
	}
	return b.fakeBroker.Publish(ctx, msg)
}

func TestBookingProceedsWhileBrokerBlocks(t *testing.T) {
	store := memory.NewStore()
	repos := store.Repositories()
	broker := newBlockingBroker()
	p, err := NewOutboxProcessor(repos.Tx, repos.Outbox, broker, testConfig(), logger.Nop(), metrics.New("test"))
	require.NoError(t, err)
	enqueue(t, repos)

	from := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	slot := model.MedicalRoomTime{Base: model.Base{ID: uuid.New()}, MedicalRoomID: uuid.New(), DoctorID: uuid.New(), FromTime: from, ToTime: from.Add(30 * time.Minute)}
	store.SeedSlot(slot)

	processed := make(chan int, 1)
	go func() {
		n, _ := p.ProcessBatch(context.Background())
		processed <- n
	}()
	<-broker.entered

	booked := make(chan error, 1)
	go func() {
		booked <- repos.Tx.Atomic(context.Background(), func(ctx context.Context) error {
			if _, err := repos.Slots.Claim(ctx, slot.ID, uuid.New()); err != nil {
				return err
			}
			return repos.Outbox.Create(ctx, &model.OutboxEvent{
				EventType:   model.EventAppointmentBooked,
				AggregateID: uuid.New(),
				Payload:     json.RawMessage(`{"to":"PENDING"}`),
			})
		})
	}()

	select {
	case err := <-booked:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("booking blocked behind an in-flight publish")
	}

	close(broker.release)
	assert.Equal(t, 1, <-processed)

	got, err := repos.Slots.Get(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.True(t, got.Occupied())
}

func TestLeasedEventIsSkippedByConcurrentPoll(t *testing.T) {
	repos := memory.NewStore().Repositories()
	slow := newBlockingBroker()
	first, err := NewOutboxProcessor(repos.Tx, repos.Outbox, slow, testConfig(), logger.Nop(), metrics.New("test"))
	require.NoError(t, err)
	other := &fakeBroker{}
	second, err := NewOutboxProcessor(repos.Tx, repos.Outbox, other, testConfig(), logger.Nop(), metrics.New("test"))
	require.NoError(t, err)
	enqueue(t, repos)

	processed := make(chan int, 1)
	go func() {
		n, _ := first.ProcessBatch(context.Background())
		processed <- n
	}()
	<-slow.entered

	n, err := second.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, other.sent)

	close(slow.release)
	assert.Equal(t, 1, <-processed)
	assert.Len(t, slow.sent, 1)
}

func TestPurgeDeletesOldProcessedEvents(t *testing.T) {
	p, repos := setup(t, &fakeBroker{})
	enqueue(t, repos)
	ctx := context.Background()
	_, err := p.ProcessBatch(ctx)
	require.NoError(t, err)

	n, err := p.Purge(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "inside the retention window")

	p.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	n, err = p.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNewOutboxProcessorValidatesConfig(t *testing.T) {
	repos := memory.NewStore().Repositories()
	cfg := testConfig()
	cfg.Topic = ""

	_, err := NewOutboxProcessor(repos.Tx, repos.Outbox, &fakeBroker{}, cfg, logger.Nop(), metrics.New("test"))
	assert.Error(t, err)
}
