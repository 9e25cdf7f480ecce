// Package chromem implements provider.DocumentStore on chromem-go, an
// embeddable vector database with optional on-disk persistence.
package chromem

import (
	"context"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/philippgille/chromem-go"

	"github.com/loomworks/loom/provider"
)

// DefaultCollection is used when no collection name is configured.
const DefaultCollection = "snippets"

// Store implements provider.DocumentStore on a chromem collection.
// Embeddings are always supplied by the caller, never computed by the
// store, so queries replay identically across backends.
type Store struct {
	db         *chromem.DB
	collection string
}

// Option configures a Store.
type Option func(*Store)

// WithCollection overrides the collection documents are stored in.
func WithCollection(name string) Option {
	return func(s *Store) {
		s.collection = name
	}
}

// NewMemory returns a store backed by an in-memory database.
func NewMemory(opts ...Option) *Store {
	s := &Store{db: chromem.NewDB(), collection: DefaultCollection}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewPersistent returns a store persisted under path.
func NewPersistent(path string, compress bool, opts ...Option) (*Store, error) {
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, errors.Wrap(err, "open chromem db", j.KV("path", path))
	}

	s := &Store{db: db, collection: DefaultCollection}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// embedFunc rejects store-side embedding. Documents and queries carry
// precomputed vectors.
func embedFunc(context.Context, string) ([]float32, error) {
	return nil, errors.New("embeddings must be precomputed")
}

// Upsert stores docs, replacing documents with matching IDs.
func (s *Store) Upsert(ctx context.Context, docs []provider.Document) error {
	if len(docs) == 0 {
		return nil
	}

	collection, err := s.db.GetOrCreateCollection(s.collection, nil, embedFunc)
	if err != nil {
		return errors.Wrap(err, "get collection", j.KV("collection", s.collection))
	}

	cdocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		cdocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Text,
			Metadata:  doc.Metadata,
			Embedding: doc.Embedding,
		}
	}

	// Concurrency of 1 since embeddings are already computed.
	if err := collection.AddDocuments(ctx, cdocs, 1); err != nil {
		return errors.Wrap(err, "add documents", j.MKV{
			"collection": s.collection,
			"count":      len(docs),
		})
	}
	return nil
}

// QueryTopK returns up to k hits by descending cosine similarity,
// optionally restricted to documents matching every filter entry.
func (s *Store) QueryTopK(ctx context.Context, embedding []float32, k int, filter map[string]string) ([]provider.Hit, error) {
	if k <= 0 {
		return nil, errors.New("top-k must be positive", j.KV("k", k))
	}

	collection := s.db.GetCollection(s.collection, embedFunc)
	if collection == nil {
		return nil, nil
	}

	// chromem requires nResults <= document count, so rank the whole
	// collection and filter here; collections are small enough that the
	// extra candidates are cheap.
	count := collection.Count()
	if count == 0 {
		return nil, nil
	}

	results, err := collection.QueryEmbedding(ctx, embedding, count, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "query collection", j.KV("collection", s.collection))
	}

	hits := make([]provider.Hit, 0, k)
	for _, r := range results {
		if !matches(r.Metadata, filter) {
			continue
		}

		hits = append(hits, provider.Hit{
			ID:       r.ID,
			Text:     r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

func matches(metadata, filter map[string]string) bool {
	for key, want := range filter {
		if metadata[key] != want {
			return false
		}
	}
	return true
}

var _ provider.DocumentStore = (*Store)(nil)
