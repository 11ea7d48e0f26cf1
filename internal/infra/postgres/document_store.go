package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizhub-service/internal/docstore"
)

// DocumentStore keeps documents as JSONB rows keyed by (collection, id).
type DocumentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

func (s *DocumentStore) NewID() string {
	return docstore.NewID()
}

func (s *DocumentStore) Get(ctx context.Context, ref docstore.Ref) (docstore.Snapshot, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection=$1 AND id=$2`,
		ref.Collection, ref.ID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.Snapshot{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("load %s: %w", ref.Path(), err)
	}
	doc, err := decode(raw)
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("unmarshal %s: %w", ref.Path(), err)
	}
	return docstore.Snapshot{ID: ref.ID, Data: doc}, nil
}

func (s *DocumentStore) Set(ctx context.Context, ref docstore.Ref, data docstore.Doc, merge bool) error {
	return s.write(ctx, ref, func(existing docstore.Doc, _ bool) (docstore.Doc, error) {
		return docstore.Apply(existing, data, merge)
	})
}

func (s *DocumentStore) Update(ctx context.Context, ref docstore.Ref, fields docstore.Doc) error {
	return s.write(ctx, ref, func(existing docstore.Doc, exists bool) (docstore.Doc, error) {
		if !exists {
			return nil, docstore.ErrNotFound
		}
		return docstore.Apply(existing, fields, true)
	})
}

func (s *DocumentStore) Delete(ctx context.Context, ref docstore.Ref) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection=$1 AND id=$2`,
		ref.Collection, ref.ID,
	)
	if err != nil {
		return fmt.Errorf("delete %s: %w", ref.Path(), err)
	}
	return nil
}

// Query pushes equality filters down as JSONB containment and finishes ordering
// and limits in memory.
func (s *DocumentStore) Query(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	contains := docstore.Doc{}
	for _, f := range q.Filters {
		contains[f.Field] = f.Value
	}
	filter, err := json.Marshal(contains)
	if err != nil {
		return nil, fmt.Errorf("marshal filter: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, data FROM documents WHERE collection=$1 AND data @> $2::jsonb`,
		q.Collection, string(filter),
	)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var snaps []docstore.Snapshot
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Collection, err)
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("unmarshal %s/%s: %w", q.Collection, id, err)
		}
		snaps = append(snaps, docstore.Snapshot{ID: id, Data: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	return docstore.Evaluate(q, snaps), nil
}

func (s *DocumentStore) write(ctx context.Context, ref docstore.Ref, next func(existing docstore.Doc, exists bool) (docstore.Doc, error)) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin %s: %w", ref.Path(), err)
	}
	defer tx.Rollback(ctx)

	var (
		existing docstore.Doc
		raw      []byte
	)
	exists := true
	err = tx.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection=$1 AND id=$2 FOR UPDATE`,
		ref.Collection, ref.ID,
	).Scan(&raw)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		exists = false
	case err != nil:
		return fmt.Errorf("lock %s: %w", ref.Path(), err)
	default:
		if existing, err = decode(raw); err != nil {
			return fmt.Errorf("unmarshal %s: %w", ref.Path(), err)
		}
	}

	doc, err := next(existing, exists)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ref.Path(), err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, id) DO UPDATE SET data=EXCLUDED.data, updated_at=now()`,
		ref.Collection, ref.ID, string(payload),
	)
	if err != nil {
		return fmt.Errorf("store %s: %w", ref.Path(), err)
	}
	return tx.Commit(ctx)
}

func decode(raw []byte) (docstore.Doc, error) {
	doc := docstore.Doc{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
