package server

import (
	"encoding/json"
	"sync"
)

const (
	TableEvents = "global_events"
	TableTapes  = "tape_unlocks"
)

// Envelope is the change notification published to stream subscribers.
type Envelope struct {
	Table string          `json:"table"`
	Op    string          `json:"op"` // insert, update, delete
	Row   json.RawMessage `json:"row"`
}

// Broker is an in-process pub/sub for change envelopes, keyed by table.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded envelopes for the
// given table.
func (b *Broker) Subscribe(table string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[table] == nil {
		b.subs[table] = make(map[chan []byte]struct{})
	}
	b.subs[table][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the table's subscribers.
func (b *Broker) Unsubscribe(table string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[table], ch)
	if len(b.subs[table]) == 0 {
		delete(b.subs, table)
	}
	b.mu.Unlock()
}

// Publish sends a change envelope to all subscribers of its table.
func (b *Broker) Publish(op string, table string, row any) {
	rowData, err := json.Marshal(row)
	if err != nil {
		return
	}
	data, _ := json.Marshal(Envelope{Table: table, Op: op, Row: rowData})

	b.mu.RLock()
	for ch := range b.subs[table] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}
