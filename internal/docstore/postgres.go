package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"bunkhouse/pkg/platform/retry"
	"bunkhouse/pkg/platform/sentinel"
)

// notifyChannel is the pg_notify channel carrying change-feed envelopes.
const notifyChannel = "docstore_changes"

// Schema creates the single documents table the store runs on. Applied by
// EnsureSchema at startup; kept as plain DDL so operators can run it by hand.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
    collection  TEXT        NOT NULL,
    id          TEXT        NOT NULL,
    doc         JSONB       NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents (collection);
`

// Postgres persists documents as JSONB rows keyed by (collection, id).
// BatchWrite runs inside one transaction, which is the atomic multi-document
// commit the engine's worker+room updates rely on. Statements go through the
// shared retry policy so transient connection failures do not surface as
// terminal errors on the first hiccup.
type Postgres struct {
	db     *sql.DB
	dsn    string
	policy retry.Policy
	logger *slog.Logger
}

type PostgresOption func(*Postgres)

func WithRetryPolicy(p retry.Policy) PostgresOption {
	return func(s *Postgres) { s.policy = p }
}

func WithLogger(logger *slog.Logger) PostgresOption {
	return func(s *Postgres) { s.logger = logger }
}

// NewPostgres constructs a PostgreSQL-backed store. The DSN is kept for the
// change-feed listener, which needs its own connection.
func NewPostgres(db *sql.DB, dsn string, opts ...PostgresOption) *Postgres {
	s := &Postgres{db: db, dsn: dsn, policy: retry.Default}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema applies the documents table DDL.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	return s.policy.Do(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, Schema)
		return err
	})
}

func (s *Postgres) Get(ctx context.Context, c Collection, id string, out any) error {
	var raw []byte
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx,
			`SELECT doc FROM documents WHERE collection = $1 AND id = $2`, string(c), id)
		if err := row.Scan(&raw); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("get %s/%s: %w", c, id, err)
	}
	return json.Unmarshal(raw, out)
}

func (s *Postgres) Put(ctx context.Context, c Collection, id string, doc any) error {
	return s.BatchWrite(ctx, []Write{PutWrite(c, id, doc)})
}

func (s *Postgres) Delete(ctx context.Context, c Collection, id string) error {
	return s.BatchWrite(ctx, []Write{DeleteWrite(c, id)})
}

func (s *Postgres) BatchWrite(ctx context.Context, writes []Write) error {
	if len(writes) == 0 {
		return nil
	}
	return s.policy.Do(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin batch: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		for _, w := range writes {
			switch w.Op {
			case OpPut:
				raw, err := json.Marshal(w.Doc)
				if err != nil {
					return fmt.Errorf("marshal %s/%s: %w", w.Collection, w.ID, err)
				}
				_, err = tx.ExecContext(ctx, `
					INSERT INTO documents (collection, id, doc, updated_at)
					VALUES ($1, $2, $3, now())
					ON CONFLICT (collection, id)
					DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
					string(w.Collection), w.ID, raw)
				if err != nil {
					return fmt.Errorf("put %s/%s: %w", w.Collection, w.ID, err)
				}
			case OpDelete:
				_, err := tx.ExecContext(ctx,
					`DELETE FROM documents WHERE collection = $1 AND id = $2`,
					string(w.Collection), w.ID)
				if err != nil {
					return fmt.Errorf("delete %s/%s: %w", w.Collection, w.ID, err)
				}
			default:
				return fmt.Errorf("unsupported op %q", w.Op)
			}
			if err := notifyTx(ctx, tx, w); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// notifyTx emits the change-feed envelope inside the batch transaction so
// listeners only observe committed writes.
func notifyTx(ctx context.Context, tx *sql.Tx, w Write) error {
	envelope, err := json.Marshal(feedEnvelope{
		Collection: string(w.Collection),
		ID:         w.ID,
		Op:         string(w.Op),
	})
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(envelope)); err != nil {
		return fmt.Errorf("notify %s/%s: %w", w.Collection, w.ID, err)
	}
	return nil
}

type feedEnvelope struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Op         string `json:"op"`
}

func (s *Postgres) QueryByField(ctx context.Context, c Collection, field, value string) ([]Document, error) {
	var out []Document
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, doc FROM documents WHERE collection = $1 AND doc->>$2 = $3`,
			string(c), field, value)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var d Document
			if err := rows.Scan(&d.ID, (*[]byte)(&d.Doc)); err != nil {
				return err
			}
			out = append(out, d)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query %s by %s: %w", c, field, err)
	}
	return out, nil
}

func (s *Postgres) List(ctx context.Context, c Collection) ([]Document, error) {
	var out []Document
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, doc FROM documents WHERE collection = $1`, string(c))
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var d Document
			if err := rows.Scan(&d.ID, (*[]byte)(&d.Doc)); err != nil {
				return err
			}
			out = append(out, d)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c, err)
	}
	return out, nil
}

// Subscribe opens a LISTEN connection and forwards envelopes for the given
// collection. Documents are re-fetched on put events because pg_notify
// payloads are size-limited.
func (s *Postgres) Subscribe(ctx context.Context, c Collection) (<-chan Event, func(), error) {
	listener := pq.NewListener(s.dsn, time.Second, 30*time.Second, func(_ pq.ListenerEventType, err error) {
		if err != nil && s.logger != nil {
			s.logger.Warn("docstore listener event", "error", err)
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		_ = listener.Close()
		return nil, nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	ch := make(chan Event, 64)
	done := make(chan struct{})

	go func() {
		defer close(ch)
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				if n == nil {
					// Reconnect marker; events in between were missed,
					// which the best-effort feed contract allows.
					continue
				}
				var env feedEnvelope
				if err := json.Unmarshal([]byte(n.Extra), &env); err != nil || env.Collection != string(c) {
					continue
				}
				ev := Event{Collection: c, ID: env.ID, Op: Op(env.Op)}
				if ev.Op == OpPut {
					var raw json.RawMessage
					if err := s.Get(ctx, c, env.ID, &raw); err == nil {
						ev.Doc = raw
					}
				}
				select {
				case ch <- ev:
				default:
				}
			}
		}
	}()

	cancel := func() {
		close(done)
		_ = listener.Close()
	}
	return ch, cancel, nil
}
