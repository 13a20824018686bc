package identity

import (
	"context"
	"sync"

	id "bunkhouse/pkg/domain"
	"bunkhouse/pkg/platform/sentinel"
)

// InMemory is the Index used by unit tests and single-node deployments.
type InMemory struct {
	mu      sync.Mutex
	holders map[id.NationalID]id.WorkerID
}

func NewInMemory() *InMemory {
	return &InMemory{holders: make(map[id.NationalID]id.WorkerID)}
}

func (m *InMemory) Reserve(_ context.Context, nationalID id.NationalID, workerID id.WorkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if holder, ok := m.holders[nationalID]; ok && holder != workerID {
		return sentinel.ErrConflict
	}
	m.holders[nationalID] = workerID
	return nil
}

func (m *InMemory) Release(_ context.Context, nationalID id.NationalID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.holders, nationalID)
	return nil
}

func (m *InMemory) Lookup(_ context.Context, nationalID id.NationalID) (id.WorkerID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	holder, ok := m.holders[nationalID]
	if !ok {
		return id.WorkerID{}, sentinel.ErrNotFound
	}
	return holder, nil
}
