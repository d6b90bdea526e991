package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

type fakeBridge struct {
	mu        sync.Mutex
	handlers  map[uuid.UUID]func(event string, payload []byte)
	cancelled map[uuid.UUID]bool
	fail      bool
	subFail   bool
	subCalls  int
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{
		handlers:  make(map[uuid.UUID]func(string, []byte)),
		cancelled: make(map[uuid.UUID]bool),
	}
}

func (f *fakeBridge) PublishEvent(eventID uuid.UUID, event string, payload []byte) error {
	if f.fail {
		return errors.New("redis down")
	}
	f.mu.Lock()
	h := f.handlers[eventID]
	f.mu.Unlock()
	if h != nil {
		h(event, payload)
	}
	return nil
}

func (f *fakeBridge) SubscribeEvent(eventID uuid.UUID, handler func(event string, payload []byte)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subCalls++
	if f.subFail {
		return nil, errors.New("redis down")
	}
	f.handlers[eventID] = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, eventID)
		f.cancelled[eventID] = true
	}, nil
}

func drain(t *testing.T, c *Client) WSMessage {
	t.Helper()
	select {
	case m := <-c.send:
		return m
	default:
		t.Fatal("expected a queued message")
		return WSMessage{}
	}
}

func TestHub_PublishLocalOnlyReachesRoom(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	eventA, eventB := uuid.New(), uuid.New()
	a := NewClient(hub, eventA, uuid.New(), nil)
	b := NewClient(hub, eventB, uuid.New(), nil)
	hub.Register(a)
	hub.Register(b)

	hub.Publish(eventA, EventCheckIn, map[string]string{"attendee_id": "x"})

	msg := drain(t, a)
	if msg.Event != EventCheckIn {
		t.Errorf("event: got %q", msg.Event)
	}
	var data map[string]string
	if err := json.Unmarshal(msg.Data, &data); err != nil || data["attendee_id"] != "x" {
		t.Errorf("data: %s (%v)", msg.Data, err)
	}
	if len(b.send) != 0 {
		t.Error("other room received the message")
	}
}

func TestHub_PublishThroughRedisDeliversOnce(t *testing.T) {
	bridge := newFakeBridge()
	hub := NewHub(nil, bridge, bridge)
	eventID := uuid.New()
	c := NewClient(hub, eventID, uuid.New(), nil)
	hub.Register(c)

	hub.Publish(eventID, EventCheckOut, map[string]int{"n": 1})

	drain(t, c)
	if len(c.send) != 0 {
		t.Errorf("duplicate delivery: %d extra", len(c.send))
	}
}

func TestHub_RedisFailureFallsBackToLocal(t *testing.T) {
	bridge := newFakeBridge()
	bridge.fail = true
	hub := NewHub(nil, bridge, bridge)
	eventID := uuid.New()
	c := NewClient(hub, eventID, uuid.New(), nil)
	hub.Register(c)

	hub.Publish(eventID, EventCheckInAll, map[string]int{"count": 3})
	if drain(t, c).Event != EventCheckInAll {
		t.Error("local fallback did not deliver")
	}
}

func TestHub_LastClientCancelsSubscription(t *testing.T) {
	bridge := newFakeBridge()
	hub := NewHub(nil, bridge, bridge)
	eventID := uuid.New()
	c1 := NewClient(hub, eventID, uuid.New(), nil)
	c2 := NewClient(hub, eventID, uuid.New(), nil)
	hub.Register(c1)
	hub.Register(c2)
	if hub.ViewerCount(eventID) != 2 {
		t.Fatalf("viewers: got %d", hub.ViewerCount(eventID))
	}

	hub.Unregister(c1)
	if bridge.cancelled[eventID] {
		t.Fatal("subscription cancelled while a client remains")
	}
	hub.Unregister(c2)
	hub.Unregister(c2)
	if !bridge.cancelled[eventID] {
		t.Error("subscription not cancelled after last client left")
	}
	if hub.ViewerCount(eventID) != 0 {
		t.Errorf("viewers: got %d", hub.ViewerCount(eventID))
	}
	if _, ok := <-c2.send; ok {
		t.Error("send channel not closed")
	}
}

func TestHub_FailedSubscribeIsRetried(t *testing.T) {
	bridge := newFakeBridge()
	bridge.subFail = true
	hub := NewHub(nil, bridge, bridge)
	eventID := uuid.New()
	c1 := NewClient(hub, eventID, uuid.New(), nil)
	hub.Register(c1)

	// No subscription: the room is served by a local broadcast.
	hub.Publish(eventID, EventCheckIn, map[string]int{"n": 1})
	drain(t, c1)

	bridge.subFail = false
	c2 := NewClient(hub, eventID, uuid.New(), nil)
	hub.Register(c2)
	if bridge.subCalls != 2 {
		t.Fatalf("subscribe attempts: got %d, want 2", bridge.subCalls)
	}

	hub.Publish(eventID, EventCheckOut, map[string]int{"n": 2})
	for _, c := range []*Client{c1, c2} {
		if drain(t, c).Event != EventCheckOut {
			t.Error("room client missed the event")
		}
		if len(c.send) != 0 {
			t.Errorf("duplicate delivery: %d extra", len(c.send))
		}
	}

	c3 := NewClient(hub, eventID, uuid.New(), nil)
	hub.Register(c3)
	if bridge.subCalls != 2 {
		t.Errorf("subscribed again with an active subscription: %d calls", bridge.subCalls)
	}
}
