// Package docstore abstracts the document store the residency engine runs
// against. The engine only needs point reads/writes by key, one atomic
// multi-document batch write, field-equality queries, a bulk list for the
// repair pass, and a change-feed subscription. Anything richer (pagination,
// local caching) belongs to the generic store client outside this repo.
package docstore

import (
	"context"
	"encoding/json"
)

// Collection names the document namespaces the engine reads and writes.
type Collection string

const (
	Workers Collection = "workers"
	Rooms   Collection = "rooms"
	Farms   Collection = "farms"
)

// Op distinguishes upserts from deletions in batch writes and feed events.
type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// Write is one entry of an atomic batch. Doc is ignored for OpDelete.
type Write struct {
	Collection Collection
	ID         string
	Doc        any
	Op         Op
}

// Document is a stored document with its key.
type Document struct {
	ID  string
	Doc json.RawMessage
}

// Event is one change-feed entry. Doc is empty for deletions.
type Event struct {
	Collection Collection
	ID         string
	Op         Op
	Doc        json.RawMessage
}

// Store is interface-driven so the engine stays testable against the
// in-memory implementation and runs against PostgreSQL in production.
type Store interface {
	// Get decodes the document with the given key into out.
	// Returns sentinel.ErrNotFound when the key does not exist.
	Get(ctx context.Context, c Collection, id string, out any) error

	// Put upserts one document.
	Put(ctx context.Context, c Collection, id string, doc any) error

	// Delete removes one document. Deleting a missing key is a no-op.
	Delete(ctx context.Context, c Collection, id string) error

	// BatchWrite applies all writes atomically: either every entry commits
	// or none do. This is the only multi-document atomicity the engine
	// relies on.
	BatchWrite(ctx context.Context, writes []Write) error

	// QueryByField returns every document whose top-level field equals the
	// given value.
	QueryByField(ctx context.Context, c Collection, field, value string) ([]Document, error)

	// List returns every document in the collection. Used by the repair
	// pass, which needs ground truth rather than an index.
	List(ctx context.Context, c Collection) ([]Document, error)

	// Subscribe returns a change feed for the collection and a cancel
	// function. Events are best-effort: a slow consumer may miss entries.
	Subscribe(ctx context.Context, c Collection) (<-chan Event, func(), error)
}

// PutWrite builds an upsert batch entry.
func PutWrite(c Collection, id string, doc any) Write {
	return Write{Collection: c, ID: id, Doc: doc, Op: OpPut}
}

// DeleteWrite builds a deletion batch entry.
func DeleteWrite(c Collection, id string) Write {
	return Write{Collection: c, ID: id, Op: OpDelete}
}
