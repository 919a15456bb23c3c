package events

import (
	"sync"
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return e
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	return nil
}

func expectNone(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %s", e.EventType())
	case <-time.After(30 * time.Millisecond):
	}
}

func TestPublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicSubtask, 10)

	bus.Publish(TopicSubtask, SubtaskStartedEvent{
		Session:   "s-1",
		ID:        "t1",
		AgentID:   "researcher",
		Batch:     1,
		Timestamp: time.Now(),
	})

	received := receive(t, ch)
	if received.SessionID() != "s-1" {
		t.Errorf("expected session 's-1', got '%s'", received.SessionID())
	}
	if received.EventType() != EventTypeSubtaskStarted {
		t.Errorf("expected event type '%s', got '%s'", EventTypeSubtaskStarted, received.EventType())
	}
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch1 := bus.Subscribe(TopicSubtask, 10)
	ch2 := bus.Subscribe(TopicSubtask, 10)

	bus.Publish(TopicSubtask, SubtaskCompletedEvent{Session: "s-2", ID: "t1", Result: "done"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		e := receive(t, ch)
		if e.SessionID() != "s-2" {
			t.Errorf("subscriber %d: expected session 's-2', got '%s'", i+1, e.SessionID())
		}
	}
}

func TestTopicIsolation(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	subtasks := bus.Subscribe(TopicSubtask, 10)
	bus.Publish(TopicSession, SessionCreatedEvent{Session: "s-1"})
	expectNone(t, subtasks)
}

func TestSubscribeAll(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.SubscribeAll(10)
	bus.Publish(TopicSession, SessionCreatedEvent{Session: "s-1"})
	bus.Publish(TopicSubtask, SubtaskFailedEvent{Session: "s-1", ID: "t1", Err: "boom"})

	if got := receive(t, ch).EventType(); got != EventTypeSessionCreated {
		t.Errorf("first event: got %s", got)
	}
	if got := receive(t, ch).EventType(); got != EventTypeSubtaskFailed {
		t.Errorf("second event: got %s", got)
	}
}

func TestSubscribeSessionFilters(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.SubscribeSession("mine", 10)
	bus.Publish(TopicSubtask, SubtaskStartedEvent{Session: "other", ID: "t1"})
	bus.Publish(TopicSession, SessionFinishedEvent{Session: "mine", Status: "completed"})

	e := receive(t, ch)
	if e.SessionID() != "mine" {
		t.Fatalf("expected only events for 'mine', got '%s'", e.SessionID())
	}
	expectNone(t, ch)
}

func TestNonBlockingSend(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicSubtask, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(TopicSubtask, BatchProgressEvent{Session: "s", Batch: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	if e := receive(t, ch).(BatchProgressEvent); e.Batch != 0 {
		t.Errorf("expected first event to be kept, got batch %d", e.Batch)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.SubscribeAll(4)
	bus.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after Unsubscribe")
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	bus.Publish(TopicSession, SessionCreatedEvent{Session: "s"})
}

func TestCloseIsIdempotent(t *testing.T) {
	bus := NewEventBus()
	ch := bus.SubscribeAll(1)

	bus.Close()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}

	late := bus.SubscribeAll(1)
	if _, ok := <-late; ok {
		t.Fatal("subscribing after Close should return a closed channel")
	}
	bus.Publish(TopicSession, SessionCreatedEvent{Session: "s"})
}

func TestConcurrentPublish(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.SubscribeAll(1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Publish(TopicSubtask, SubtaskStartedEvent{Session: "s"})
			}
		}()
	}
	wg.Wait()

	if len(ch) != 500 {
		t.Errorf("expected 500 buffered events, got %d", len(ch))
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	p.Publish(TopicSession, SessionCreatedEvent{})
}
