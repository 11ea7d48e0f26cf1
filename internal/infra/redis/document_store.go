package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quizhub-service/internal/docstore"
)

const maxTxRetries = 8

// DocumentStore keeps documents in Redis.
// Each document is a JSON string:    SET doc:{collection}/{id} {json}
// Each collection has an id index:   SADD docs:{collection} {id}
// Read-modify-write paths (merge, update, increments) run under WATCH.
type DocumentStore struct {
	client *redis.Client
}

func NewDocumentStore(client *redis.Client) *DocumentStore {
	return &DocumentStore{client: client}
}

func (s *DocumentStore) NewID() string {
	return docstore.NewID()
}

func (s *DocumentStore) Get(ctx context.Context, ref docstore.Ref) (docstore.Snapshot, error) {
	raw, err := s.client.Get(ctx, s.docKey(ref)).Bytes()
	if errors.Is(err, redis.Nil) {
		return docstore.Snapshot{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("get %s: %w", ref.Path(), err)
	}
	doc, err := decode(raw)
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("decode %s: %w", ref.Path(), err)
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
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.docKey(ref))
	pipe.SRem(ctx, s.indexKey(ref.Collection), ref.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", ref.Path(), err)
	}
	return nil
}

func (s *DocumentStore) Query(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey(q.Collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", q.Collection, err)
	}
	if len(ids) == 0 {
		return []docstore.Snapshot{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(docstore.Ref{Collection: q.Collection, ID: id})
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", q.Collection, err)
	}

	snaps := make([]docstore.Snapshot, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry outlived its document
			continue
		}
		doc, err := decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", q.Collection, ids[i], err)
		}
		snaps = append(snaps, docstore.Snapshot{ID: ids[i], Data: doc})
	}
	return docstore.Evaluate(q, snaps), nil
}

func (s *DocumentStore) write(ctx context.Context, ref docstore.Ref, next func(existing docstore.Doc, exists bool) (docstore.Doc, error)) error {
	key := s.docKey(ref)
	txf := func(tx *redis.Tx) error {
		var existing docstore.Doc
		exists := true
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			exists = false
		case err != nil:
			return err
		default:
			if existing, err = decode(raw); err != nil {
				return err
			}
		}

		doc, err := next(existing, exists)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(doc)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.SAdd(ctx, s.indexKey(ref.Collection), ref.ID)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("write %s: %w", ref.Path(), err)
		}
		return err
	}
	return fmt.Errorf("write %s: %w", ref.Path(), redis.TxFailedErr)
}

func (s *DocumentStore) docKey(ref docstore.Ref) string {
	return "doc:" + ref.Path()
}

func (s *DocumentStore) indexKey(collection string) string {
	return "docs:" + collection
}

func decode(raw []byte) (docstore.Doc, error) {
	doc := docstore.Doc{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
