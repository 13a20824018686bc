// Package store persists worker aggregates in the document store. It stays a
// thin mapping layer: invariants live in the models and the ledger, and the
// coordinator composes multi-document batches itself.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"bunkhouse/internal/docstore"
	"bunkhouse/internal/residency/models"
	id "bunkhouse/pkg/domain"
	"bunkhouse/pkg/platform/sentinel"
)

// WorkerStore reads and writes worker documents.
type WorkerStore struct {
	docs docstore.Store
}

func NewWorkerStore(docs docstore.Store) *WorkerStore {
	return &WorkerStore{docs: docs}
}

// FindByID returns the worker or sentinel.ErrNotFound.
func (s *WorkerStore) FindByID(ctx context.Context, workerID id.WorkerID) (*models.Worker, error) {
	var w models.Worker
	if err := s.docs.Get(ctx, docstore.Workers, workerID.String(), &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// FindByNationalID resolves the network-wide record for a national ID, or
// sentinel.ErrNotFound. The national ID is unique across the entire network,
// so at most one document matches; duplicates produced by the optimistic
// registration race surface here as the first match and are left for the
// repair pass and the identity index to flag.
func (s *WorkerStore) FindByNationalID(ctx context.Context, nationalID id.NationalID) (*models.Worker, error) {
	docs, err := s.docs.QueryByField(ctx, docstore.Workers, "nationalId", nationalID.String())
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return decodeWorker(docs[0])
}

// FindByFullName returns every worker with the exact stored full name. Used
// for the advisory name-similarity check only.
func (s *WorkerStore) FindByFullName(ctx context.Context, fullName string) ([]models.Worker, error) {
	docs, err := s.docs.QueryByField(ctx, docstore.Workers, "fullName", fullName)
	if err != nil {
		return nil, err
	}
	return decodeWorkers(docs)
}

// ListByFarm returns every worker currently assigned to the farm, any status.
func (s *WorkerStore) ListByFarm(ctx context.Context, farmID id.FarmID) ([]models.Worker, error) {
	docs, err := s.docs.QueryByField(ctx, docstore.Workers, "farmId", farmID.String())
	if err != nil {
		return nil, err
	}
	return decodeWorkers(docs)
}

// ListAll returns every worker in the network. Repair-pass ground truth.
func (s *WorkerStore) ListAll(ctx context.Context) ([]models.Worker, error) {
	docs, err := s.docs.List(ctx, docstore.Workers)
	if err != nil {
		return nil, err
	}
	return decodeWorkers(docs)
}

// Save upserts one worker outside any batch.
func (s *WorkerStore) Save(ctx context.Context, w *models.Worker) error {
	return s.docs.Put(ctx, docstore.Workers, w.ID.String(), w)
}

// Write builds the batch entry for an upsert.
func (s *WorkerStore) Write(w *models.Worker) docstore.Write {
	return docstore.PutWrite(docstore.Workers, w.ID.String(), w)
}

// DeleteWrite builds the batch entry for a hard delete.
func (s *WorkerStore) DeleteWrite(workerID id.WorkerID) docstore.Write {
	return docstore.DeleteWrite(docstore.Workers, workerID.String())
}

func decodeWorker(doc docstore.Document) (*models.Worker, error) {
	var w models.Worker
	if err := json.Unmarshal(doc.Doc, &w); err != nil {
		return nil, fmt.Errorf("decode worker %s: %w", doc.ID, err)
	}
	return &w, nil
}

func decodeWorkers(docs []docstore.Document) ([]models.Worker, error) {
	out := make([]models.Worker, 0, len(docs))
	for _, doc := range docs {
		w, err := decodeWorker(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, nil
}
