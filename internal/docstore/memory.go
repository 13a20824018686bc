package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"bunkhouse/pkg/platform/sentinel"
)

// Memory is the in-memory Store used by unit tests and local development.
// BatchWrite holds the lock for the whole batch, which gives it the same
// all-or-nothing visibility the PostgreSQL implementation gets from a
// transaction.
type Memory struct {
	mu   sync.RWMutex
	docs map[Collection]map[string]json.RawMessage

	subMu  sync.Mutex
	nextID int
	subs   map[Collection]map[int]chan Event
}

func NewMemory() *Memory {
	return &Memory{
		docs: make(map[Collection]map[string]json.RawMessage),
		subs: make(map[Collection]map[int]chan Event),
	}
}

func (m *Memory) Get(_ context.Context, c Collection, id string, out any) error {
	m.mu.RLock()
	raw, ok := m.docs[c][id]
	m.mu.RUnlock()
	if !ok {
		return sentinel.ErrNotFound
	}
	return json.Unmarshal(raw, out)
}

func (m *Memory) Put(ctx context.Context, c Collection, id string, doc any) error {
	return m.BatchWrite(ctx, []Write{PutWrite(c, id, doc)})
}

func (m *Memory) Delete(ctx context.Context, c Collection, id string) error {
	return m.BatchWrite(ctx, []Write{DeleteWrite(c, id)})
}

func (m *Memory) BatchWrite(_ context.Context, writes []Write) error {
	// Marshal before taking the lock so a bad document aborts the batch
	// without partial application.
	events := make([]Event, 0, len(writes))
	for _, w := range writes {
		switch w.Op {
		case OpPut:
			raw, err := json.Marshal(w.Doc)
			if err != nil {
				return fmt.Errorf("marshal %s/%s: %w", w.Collection, w.ID, err)
			}
			events = append(events, Event{Collection: w.Collection, ID: w.ID, Op: OpPut, Doc: raw})
		case OpDelete:
			events = append(events, Event{Collection: w.Collection, ID: w.ID, Op: OpDelete})
		default:
			return fmt.Errorf("unsupported op %q", w.Op)
		}
	}

	m.mu.Lock()
	for _, ev := range events {
		switch ev.Op {
		case OpPut:
			if m.docs[ev.Collection] == nil {
				m.docs[ev.Collection] = make(map[string]json.RawMessage)
			}
			m.docs[ev.Collection][ev.ID] = ev.Doc
		case OpDelete:
			delete(m.docs[ev.Collection], ev.ID)
		}
	}
	m.mu.Unlock()

	for _, ev := range events {
		m.publish(ev)
	}
	return nil
}

func (m *Memory) QueryByField(_ context.Context, c Collection, field, value string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Document
	for id, raw := range m.docs[c] {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", c, id, err)
		}
		v, ok := fields[field]
		if !ok {
			continue
		}
		if fmt.Sprintf("%v", v) == value {
			out = append(out, Document{ID: id, Doc: raw})
		}
	}
	return out, nil
}

func (m *Memory) List(_ context.Context, c Collection) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Document, 0, len(m.docs[c]))
	for id, raw := range m.docs[c] {
		out = append(out, Document{ID: id, Doc: raw})
	}
	return out, nil
}

func (m *Memory) Subscribe(_ context.Context, c Collection) (<-chan Event, func(), error) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	m.nextID++
	id := m.nextID
	ch := make(chan Event, 64)
	if m.subs[c] == nil {
		m.subs[c] = make(map[int]chan Event)
	}
	m.subs[c][id] = ch

	cancel := func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if sub, ok := m.subs[c][id]; ok {
			delete(m.subs[c], id)
			close(sub)
		}
	}
	return ch, cancel, nil
}

func (m *Memory) publish(ev Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs[ev.Collection] {
		select {
		case ch <- ev:
		default:
			// Slow consumers miss events; the feed is best-effort.
		}
	}
}
