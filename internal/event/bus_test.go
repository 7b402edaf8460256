package event

import (
	"sync"
	"testing"
	"time"
)

func TestPublishFanout(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var mu sync.Mutex
	var got []string
	var wg sync.WaitGroup
	wg.Add(2)

	for _, name := range []string{"a", "b"} {
		name := name
		bus.Subscribe(TopicIndexRebuild, func(ev Event) {
			mu.Lock()
			got = append(got, name+":"+ev.Collection)
			mu.Unlock()
			wg.Done()
		})
	}

	bus.Publish(Event{Topic: TopicIndexRebuild, Collection: "main"})
	waitTimeout(t, &wg)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(got))
	}
}

func TestSubscriberPanicDoesNotBlockOthers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	bus.Subscribe(TopicCacheClear, func(Event) {
		panic("bad subscriber")
	})
	bus.Subscribe(TopicCacheClear, func(Event) {
		wg.Done()
	})

	bus.Publish(Event{Topic: TopicCacheClear, Namespace: "search"})
	waitTimeout(t, &wg)
}

func TestCancelStopsDelivery(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	delivered := make(chan struct{}, 4)
	cancel := bus.Subscribe(TopicBackupCreate, func(Event) {
		delivered <- struct{}{}
	})
	cancel()

	bus.Publish(Event{Topic: TopicBackupCreate, Path: "/tmp/backup"})
	select {
	case <-delivered:
		t.Fatal("cancelled subscription still received an event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTopicIsolation(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	delivered := make(chan Event, 1)
	bus.Subscribe(TopicIndexClear, func(ev Event) { delivered <- ev })

	bus.Publish(Event{Topic: TopicIndexOptimize, Collection: "other"})
	select {
	case <-delivered:
		t.Fatal("subscriber received an event from another topic")
	case <-time.After(50 * time.Millisecond):
	}
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for deliveries")
	}
}
