// Package docstore defines the schemaless document API the quiz data layer talks to.
// Documents live in collections addressed by slash-separated paths
// ("quizzes", "users/{uid}/completed_quizzes"); field names are the wire contract.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get and Update when the document does not exist.
var ErrNotFound = errors.New("document not found")

// Doc is a document body.
type Doc = map[string]any

// Store is implemented by every backend (memory, redis, postgres).
type Store interface {
	// NewID allocates a fresh document id.
	NewID() string
	Get(ctx context.Context, ref Ref) (Snapshot, error)
	// Set writes the document. With merge the given fields are laid over the
	// existing body; without merge the body is replaced.
	Set(ctx context.Context, ref Ref, data Doc, merge bool) error
	// Update merges fields into an existing document and fails with ErrNotFound otherwise.
	Update(ctx context.Context, ref Ref, fields Doc) error
	// Delete removes the document; deleting a missing document is not an error.
	Delete(ctx context.Context, ref Ref) error
	Query(ctx context.Context, q Query) ([]Snapshot, error)
}

// Ref addresses one document.
type Ref struct {
	Collection string
	ID         string
}

// Path returns "collection/id".
func (r Ref) Path() string {
	return r.Collection + "/" + r.ID
}

// Collection joins path segments into a collection path, e.g.
// Collection("users", uid, "completed_quizzes").
func Collection(segments ...string) string {
	return strings.Join(segments, "/")
}

// Snapshot is a document read from a store.
type Snapshot struct {
	ID   string
	Data Doc
}

// DataTo decodes the document body into v.
func (s Snapshot) DataTo(v any) error {
	raw, err := json.Marshal(s.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Encode turns a JSON-tagged struct into a document body.
func Encode(v any) (Doc, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Doc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// NewID returns a random document id. Backends use it for Store.NewID.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
