package events

import (
	"testing"
	"time"

	"github.com/aristath/nexflow/internal/scheduler"
)

func taskAdded(project, id string) TaskAddedEvent {
	return TaskAddedEvent{
		Project:   project,
		Task:      scheduler.Task{ID: id, Duration: scheduler.Float64(1)},
		Timestamp: time.Now(),
	}
}

// TestPublishSubscribe verifies basic publish/subscribe functionality.
func TestPublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicProject, 10)
	bus.Publish(TopicProject, taskAdded("p1", "design"))

	select {
	case received := <-ch:
		if received.ProjectID() != "p1" {
			t.Errorf("expected project 'p1', got '%s'", received.ProjectID())
		}
		if received.EventType() != EventTypeTaskAdded {
			t.Errorf("expected event type '%s', got '%s'", EventTypeTaskAdded, received.EventType())
		}
		if added, ok := received.(TaskAddedEvent); !ok || added.Task.ID != "design" {
			t.Errorf("unexpected payload %#v", received)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

// TestMultipleSubscribers verifies multiple subscribers receive the same event.
func TestMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch1 := bus.Subscribe(TopicSchedule, 10)
	ch2 := bus.Subscribe(TopicSchedule, 10)

	bus.Publish(TopicSchedule, ScheduleComputedEvent{
		Project:   "p2",
		Result:    &scheduler.ScheduleResult{ProjectEnd: 5},
		Timestamp: time.Now(),
	})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			computed, ok := received.(ScheduleComputedEvent)
			if !ok {
				t.Fatalf("subscriber %d: unexpected event %T", i+1, received)
			}
			if computed.Result.ProjectEnd != 5 {
				t.Errorf("subscriber %d: project end = %g, want 5", i+1, computed.Result.ProjectEnd)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d: timeout waiting for event", i+1)
		}
	}
}

// TestNonBlockingSend verifies that publishing doesn't block when channels are full.
func TestNonBlockingSend(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicProject, 1)

	done := make(chan bool)
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(TopicProject, taskAdded("p", "t"))
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("publisher blocked (expected non-blocking behavior)")
	}

	select {
	case received := <-ch:
		if received == nil {
			t.Error("received nil event")
		}
	default:
		t.Error("expected at least one event in buffer")
	}

	if got := bus.Dropped(); got != 9 {
		t.Errorf("Dropped() = %d, want 9", got)
	}
}

// TestCloseSignalsSubscribers verifies that closing the bus closes subscriber channels.
func TestCloseSignalsSubscribers(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(TopicProject, 10)
	all := bus.SubscribeAll(10)

	bus.Close()
	bus.Close() // idempotent

	for _, sub := range []<-chan Event{ch, all} {
		received := 0
		for range sub {
			received++
		}
		if received != 0 {
			t.Errorf("expected 0 events after close, got %d", received)
		}
	}

	// Subscribing after close yields a closed channel.
	if _, ok := <-bus.Subscribe(TopicProject, 1); ok {
		t.Error("subscription after close should be closed")
	}
}

// TestPublishAfterClose verifies publishing after close doesn't panic.
func TestPublishAfterClose(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(TopicProject, 10)

	bus.Close()

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("publishing after close caused panic: %v", r)
		}
	}()

	bus.Publish(TopicProject, taskAdded("p", "t"))

	if _, ok := <-ch; ok {
		t.Error("received event after bus was closed")
	}
}

// TestTopicIsolation verifies subscribers only see their topic.
func TestTopicIsolation(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	projectCh := bus.Subscribe(TopicProject, 10)
	scheduleCh := bus.Subscribe(TopicSchedule, 10)

	bus.Publish(TopicProject, taskAdded("p", "t"))
	bus.Publish(TopicSchedule, CycleDetectedEvent{Project: "p", Path: []string{"a", "b", "a"}, Timestamp: time.Now()})

	select {
	case received := <-projectCh:
		if received.EventType() != EventTypeTaskAdded {
			t.Errorf("project channel got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("project channel: timeout waiting for event")
	}

	select {
	case received := <-scheduleCh:
		if received.EventType() != EventTypeCycleDetected {
			t.Errorf("schedule channel got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("schedule channel: timeout waiting for event")
	}

	select {
	case ev := <-projectCh:
		t.Errorf("project channel received unexpected %s", ev.EventType())
	case ev := <-scheduleCh:
		t.Errorf("schedule channel received unexpected %s", ev.EventType())
	case <-time.After(10 * time.Millisecond):
	}
}

// TestSubscribeAll verifies that SubscribeAll receives events from all topics.
func TestSubscribeAll(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	allCh := bus.SubscribeAll(20)

	bus.Publish(TopicProject, TaskRemovedEvent{Project: "p", TaskID: "t", Timestamp: time.Now()})
	bus.Publish(TopicSchedule, ScheduleFailedEvent{Project: "p", Timestamp: time.Now()})

	receivedTypes := make(map[string]bool)
	for i := 0; i < 2; i++ {
		select {
		case received := <-allCh:
			receivedTypes[received.EventType()] = true
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for event")
		}
	}

	if !receivedTypes[EventTypeTaskRemoved] {
		t.Error("SubscribeAll did not receive project event")
	}
	if !receivedTypes[EventTypeScheduleFailed] {
		t.Error("SubscribeAll did not receive schedule event")
	}
}

// TestUnsubscribe verifies a detached channel is closed and no longer fed.
func TestUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	keep := bus.Subscribe(TopicProject, 10)
	drop := bus.Subscribe(TopicProject, 10)
	all := bus.SubscribeAll(10)

	bus.Unsubscribe(drop)
	bus.Unsubscribe(all)

	if _, ok := <-drop; ok {
		t.Error("unsubscribed topic channel should be closed")
	}
	if _, ok := <-all; ok {
		t.Error("unsubscribed all-topic channel should be closed")
	}

	bus.Publish(TopicProject, taskAdded("p", "t"))

	select {
	case <-keep:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("remaining subscriber missed the event")
	}

	// Unknown channels are ignored, and Close must not double-close.
	bus.Unsubscribe(make(chan Event))
	bus.Unsubscribe(drop)
}
