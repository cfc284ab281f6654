package eventbus

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/twitch-eventsub-relay/internal/model"
)

func chatEvent(broadcasterID, id string) *model.ChannelEvent {
	return &model.ChannelEvent{
		BroadcasterID: broadcasterID,
		MessageID:     id,
		Topic:         model.TopicChatMessage,
		Timestamp:     time.Now(),
		Payload:       &model.ChatMessage{Text: id},
	}
}

func receive(t *testing.T, sub *Subscription) *model.ChannelEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.C():
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func TestPublish_NoSubscribers(t *testing.T) {
	bus := New(4)
	assert.NotPanics(t, func() { bus.Publish(chatEvent("1", "a")) })
	assert.Equal(t, []string{"1"}, bus.Keys())
	assert.Zero(t, bus.SubscriberCount("1"))
}

func TestSubscribe_NoReplay(t *testing.T) {
	bus := New(4)
	bus.Publish(chatEvent("1", "before"))

	sub := bus.Subscribe("1")
	defer sub.Close()
	bus.Publish(chatEvent("1", "after"))

	assert.Equal(t, "after", receive(t, sub).MessageID)
	assert.Empty(t, sub.C())
}

func TestPublish_EverySubscriberGetsTheSameEvent(t *testing.T) {
	bus := New(4)
	a := bus.Subscribe("1")
	b := bus.Subscribe("1")
	other := bus.Subscribe("2")
	defer other.Close()

	ev := chatEvent("1", "x")
	bus.Publish(ev)

	assert.Same(t, ev, receive(t, a))
	assert.Same(t, ev, receive(t, b))
	assert.Empty(t, other.C())

	a.Close()
	bus.Publish(chatEvent("1", "y"))
	assert.Equal(t, "y", receive(t, b).MessageID)
	assert.Equal(t, 1, bus.SubscriberCount("1"))
	b.Close()
}

func TestPublish_FIFOPerKey(t *testing.T) {
	bus := New(16)
	sub := bus.Subscribe("1")
	defer sub.Close()

	for i := 0; i < 10; i++ {
		bus.Publish(chatEvent("1", fmt.Sprint(i)))
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, fmt.Sprint(i), receive(t, sub).MessageID)
	}
}

func TestPublish_SlowSubscriberDropsOldest(t *testing.T) {
	bus := New(3)
	slow := bus.Subscribe("1")
	defer slow.Close()

	for i := 0; i < 5; i++ {
		bus.Publish(chatEvent("1", fmt.Sprint(i)))
	}

	assert.Equal(t, uint64(2), slow.Dropped())
	assert.Equal(t, "2", receive(t, slow).MessageID)
	assert.Equal(t, "3", receive(t, slow).MessageID)
	assert.Equal(t, "4", receive(t, slow).MessageID)

	stats := bus.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, TopicStats{BroadcasterID: "1", Subscribers: 1, Published: 5, Dropped: 2}, stats[0])
}

func TestClose_ClosesChannel(t *testing.T) {
	bus := New(2)
	sub := bus.Subscribe("1")
	sub.Close()
	sub.Close()

	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.NotPanics(t, func() { bus.Publish(chatEvent("1", "late")) })
	assert.Equal(t, "1", sub.BroadcasterID())
}

func TestConcurrentAccessCreatesOneTopic(t *testing.T) {
	bus := New(256)

	const workers = 32
	subs := make([]*Subscription, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				bus.Publish(chatEvent("shared", "warmup"))
			}
			subs[i] = bus.Subscribe("shared")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []string{"shared"}, bus.Keys())
	assert.Equal(t, workers, bus.SubscriberCount("shared"))

	ev := chatEvent("shared", "broadcast")
	bus.Publish(ev)
	for _, sub := range subs {
		var got *model.ChannelEvent
		for got != ev {
			got = receive(t, sub)
		}
		sub.Close()
	}
}

func TestConcurrentPublishAndClose(t *testing.T) {
	bus := New(1)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(chatEvent("k", "e"))
			}
		}()
		go func() {
			defer wg.Done()
			sub := bus.Subscribe("k")
			time.Sleep(time.Millisecond)
			sub.Close()
		}()
	}
	wg.Wait()
	assert.Zero(t, bus.SubscriberCount("k"))
}
