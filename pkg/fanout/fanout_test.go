package fanout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jihwankim/resilience-core/pkg/fanout"
)

func TestPublishDeliversInOrder(t *testing.T) {
	f := fanout.New(10)
	sub := f.Subscribe(fanout.TopicGraphMutation)

	for i := 0; i < 5; i++ {
		f.Publish(fanout.TopicGraphMutation, i)
	}

	for i := 0; i < 5; i++ {
		ev := <-sub.Events
		assert.Equal(t, i, ev.Payload)
	}
}

func TestOverflowDropsOldestAndCountsIt(t *testing.T) {
	f := fanout.New(2)
	sub := f.Subscribe(fanout.TopicSimulationCompleted)

	f.Publish(fanout.TopicSimulationCompleted, "a")
	f.Publish(fanout.TopicSimulationCompleted, "b")
	f.Publish(fanout.TopicSimulationCompleted, "c") // should drop "a"

	first := <-sub.Events
	second := <-sub.Events
	assert.Equal(t, "b", first.Payload)
	assert.Equal(t, "c", second.Payload)
	assert.Equal(t, uint64(1), sub.Dropped())
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	f := fanout.New(4)
	sub := f.Subscribe(fanout.TopicGraphMutation)

	assert.NotPanics(t, func() {
		sub.Unsubscribe()
		sub.Unsubscribe()
	})
}

func TestUnsubscribedTopicGetsNoEvents(t *testing.T) {
	f := fanout.New(4)
	sub := f.Subscribe(fanout.TopicGraphMutation)
	sub.Unsubscribe()

	f.Publish(fanout.TopicGraphMutation, "ignored")

	_, ok := <-sub.Events
	assert.False(t, ok, "channel should be closed after unsubscribe")
}
