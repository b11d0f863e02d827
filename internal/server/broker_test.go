package server

import (
	"encoding/json"
	"testing"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()

	ch := b.Subscribe(TableEvents)
	defer b.Unsubscribe(TableEvents, ch)

	b.Publish("update", TableEvents, GlobalEvent{EventID: "EVT-001"})

	select {
	case data := <-ch:
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("decoding envelope: %v", err)
		}
		if env.Op != "update" || env.Table != TableEvents {
			t.Errorf("got %s on %s", env.Op, env.Table)
		}
	default:
		t.Fatal("expected an envelope")
	}
}

func TestBrokerScopedByTable(t *testing.T) {
	b := NewBroker()

	ch := b.Subscribe(TableTapes)
	defer b.Unsubscribe(TableTapes, ch)

	b.Publish("update", TableEvents, GlobalEvent{EventID: "EVT-001"})

	select {
	case <-ch:
		t.Fatal("tape subscriber received an event-table envelope")
	default:
	}
}

func TestBrokerUnsubscribe(t *testing.T) {
	b := NewBroker()

	ch := b.Subscribe(TableEvents)
	b.Unsubscribe(TableEvents, ch)

	b.Publish("insert", TableEvents, GlobalEvent{EventID: "EVT-001"})

	select {
	case <-ch:
		t.Fatal("unsubscribed channel received an envelope")
	default:
	}
}

func TestBrokerDropsWhenSlow(t *testing.T) {
	b := NewBroker()

	ch := b.Subscribe(TableEvents)
	defer b.Unsubscribe(TableEvents, ch)

	// Publish never blocks, even past the buffer.
	for i := 0; i < 100; i++ {
		b.Publish("insert", TableEvents, GlobalEvent{EventID: "EVT-001"})
	}
}
