// Package store persists farm and room documents.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bunkhouse/internal/docstore"
	"bunkhouse/internal/farm/models"
	id "bunkhouse/pkg/domain"
	"bunkhouse/pkg/platform/sentinel"
)

// RoomStore reads and writes room documents. Occupant fields on a room are
// derived state: only writes composed by the occupancy reconciler may touch
// them.
type RoomStore struct {
	docs docstore.Store
}

func NewRoomStore(docs docstore.Store) *RoomStore {
	return &RoomStore{docs: docs}
}

// FindByID returns the room or sentinel.ErrNotFound.
func (s *RoomStore) FindByID(ctx context.Context, roomID id.RoomID) (*models.Room, error) {
	var r models.Room
	if err := s.docs.Get(ctx, docstore.Rooms, roomID.String(), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// FindByNumber resolves a room by its farm-scoped number, or
// sentinel.ErrNotFound.
func (s *RoomStore) FindByNumber(ctx context.Context, farmID id.FarmID, number string) (*models.Room, error) {
	docs, err := s.docs.QueryByField(ctx, docstore.Rooms, "farmId", farmID.String())
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		r, err := decodeRoom(doc)
		if err != nil {
			return nil, err
		}
		if r.Number == number {
			return r, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// ListAll returns every room in the network. Repair-pass ground truth.
func (s *RoomStore) ListAll(ctx context.Context) ([]models.Room, error) {
	docs, err := s.docs.List(ctx, docstore.Rooms)
	if err != nil {
		return nil, err
	}
	out := make([]models.Room, 0, len(docs))
	for _, doc := range docs {
		r, err := decodeRoom(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

// Save upserts one room. Creating a room enforces number uniqueness within
// the farm.
func (s *RoomStore) Save(ctx context.Context, r *models.Room) error {
	existing, err := s.FindByNumber(ctx, r.FarmID, r.Number)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return err
	}
	if existing != nil && existing.ID != r.ID {
		return sentinel.ErrConflict
	}
	return s.docs.Put(ctx, docstore.Rooms, r.ID.String(), r)
}

// Write builds the batch entry for an upsert.
func (s *RoomStore) Write(r *models.Room) docstore.Write {
	return docstore.PutWrite(docstore.Rooms, r.ID.String(), r)
}

func decodeRoom(doc docstore.Document) (*models.Room, error) {
	var r models.Room
	if err := json.Unmarshal(doc.Doc, &r); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", doc.ID, err)
	}
	return &r, nil
}

// FarmStore reads and writes farm documents.
type FarmStore struct {
	docs docstore.Store
}

func NewFarmStore(docs docstore.Store) *FarmStore {
	return &FarmStore{docs: docs}
}

// FindByID returns the farm or sentinel.ErrNotFound.
func (s *FarmStore) FindByID(ctx context.Context, farmID id.FarmID) (*models.Farm, error) {
	var f models.Farm
	if err := s.docs.Get(ctx, docstore.Farms, farmID.String(), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ListAll returns every farm. Used for cross-farm notification routing.
func (s *FarmStore) ListAll(ctx context.Context) ([]models.Farm, error) {
	docs, err := s.docs.List(ctx, docstore.Farms)
	if err != nil {
		return nil, err
	}
	out := make([]models.Farm, 0, len(docs))
	for _, doc := range docs {
		var f models.Farm
		if err := json.Unmarshal(doc.Doc, &f); err != nil {
			return nil, fmt.Errorf("decode farm %s: %w", doc.ID, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// Save upserts one farm.
func (s *FarmStore) Save(ctx context.Context, f *models.Farm) error {
	return s.docs.Put(ctx, docstore.Farms, f.ID.String(), f)
}

// Write builds the batch entry for an upsert.
func (s *FarmStore) Write(f *models.Farm) docstore.Write {
	return docstore.PutWrite(docstore.Farms, f.ID.String(), f)
}
