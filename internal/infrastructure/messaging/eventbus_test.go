package messaging

import (
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edubridge/mastery-graph/internal/domain/shared"
)

// capture collects handled events behind a mutex so tests can assert on
// delivery order and counts.
type capture struct {
	mu     sync.Mutex
	events []shared.Event
}

func (c *capture) handler(event shared.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *capture) types() []shared.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]shared.EventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType())
	}
	return out
}

func masteryEvent(studentID string, percent int) shared.MasteryUpdatedEvent {
	return shared.NewMasteryUpdatedEvent(studentID, "concept-fractions", "Fractions", "class-1", percent, 0, "developing", "stable")
}

func TestInMemoryEventBus_SynchronousOrdering(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	typed := &capture{}
	global := &capture{}
	require.NoError(t, bus.Subscribe(shared.EventMasteryUpdated, typed.handler))
	require.NoError(t, bus.SubscribeAll(global.handler))

	require.NoError(t, bus.Publish(masteryEvent("student-1", 40)))
	require.NoError(t, bus.Publish(shared.NewConceptDiscoveredEvent("student-1", "concept-fractions", "Fractions", "class-1", "quiz")))
	require.NoError(t, bus.Publish(masteryEvent("student-1", 57)))

	// Synchronous mode delivers in publish order before Publish returns
	assert.Equal(t, []shared.EventType{
		shared.EventMasteryUpdated,
		shared.EventMasteryUpdated,
	}, typed.types(), "typed handler only sees its event type")

	assert.Equal(t, []shared.EventType{
		shared.EventMasteryUpdated,
		shared.EventConceptDiscovered,
		shared.EventMasteryUpdated,
	}, global.types(), "global handler sees everything in order")
}

func TestInMemoryEventBus_NilArguments(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	assert.Error(t, bus.Subscribe(shared.EventMasteryUpdated, nil))
	assert.Error(t, bus.SubscribeAll(nil))
	assert.Error(t, bus.Publish(nil))
}

func TestInMemoryEventBus_ClosedBusRejectsOperations(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	require.NoError(t, bus.Close())

	err := bus.Publish(masteryEvent("student-1", 40))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventMasteryUpdated, func(shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)

	assert.NoError(t, bus.Close(), "closing twice is a no-op")
}

func TestInMemoryEventBus_Metrics(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	sink := &capture{}
	require.NoError(t, bus.Subscribe(shared.EventMasteryUpdated, sink.handler))

	require.NoError(t, bus.Publish(masteryEvent("student-1", 40)))
	require.NoError(t, bus.Publish(masteryEvent("student-1", 57)))

	snapshot := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snapshot.TotalPublished)
	assert.Equal(t, int64(2), snapshot.TotalHandlerExecs)
	assert.Equal(t, 1.0, snapshot.HandlerSuccessRate)
}

func newMiniredisBus(t *testing.T, addr, instanceID string) *RedisEventBus {
	t.Helper()

	client := WrapGoRedis(redis.NewClient(&redis.Options{Addr: addr}))
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:     client,
		InstanceID: instanceID,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestRedisEventBus_CrossInstanceDelivery(t *testing.T) {
	mr := miniredis.RunT(t)

	busA := newMiniredisBus(t, mr.Addr(), "instance-a")
	busB := newMiniredisBus(t, mr.Addr(), "instance-b")

	sinkA := &capture{}
	sinkB := &capture{}
	require.NoError(t, busA.Subscribe(shared.EventMasteryUpdated, sinkA.handler))
	require.NoError(t, busB.Subscribe(shared.EventMasteryUpdated, sinkB.handler))

	require.NoError(t, busA.Publish(masteryEvent("student-1", 40)))

	// The publishing instance handles the event locally right away
	require.Equal(t, 1, sinkA.count())

	// The other instance receives it through Redis Pub/Sub
	require.Eventually(t, func() bool { return sinkB.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	sinkB.mu.Lock()
	remote := sinkB.events[0]
	sinkB.mu.Unlock()

	assert.Equal(t, shared.EventMasteryUpdated, remote.EventType())
	assert.Equal(t, "student-1", remote.AggregateID())
	assert.Equal(t, "concept-fractions", remote.Payload()["concept_id"])

	// Self-published events are filtered out of the Redis path, so the
	// publisher must not see a duplicate delivery
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, sinkA.count())
}

func TestRedisEventBus_RequiresClient(t *testing.T) {
	_, err := NewRedisEventBus(RedisEventBusConfig{})
	assert.Error(t, err)
}

func TestRedisEventBus_ClosedBusRejectsPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	bus := newMiniredisBus(t, mr.Addr(), "instance-closed")

	require.NoError(t, bus.Close())
	err := bus.Publish(masteryEvent("student-1", 40))
	assert.ErrorIs(t, err, ErrEventBusClosed)
}
