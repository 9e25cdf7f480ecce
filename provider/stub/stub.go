// Package stub provides deterministic offline implementations of the
// provider interfaces. Hosts select them when no model credentials are
// configured; tests use them for reproducible behaviour.
package stub

import (
	"context"
	"sort"
	"sync"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/loomworks/loom/provider"
)

// MockAnswer is the fixed chat reply.
const MockAnswer = "This is a mocked answer."

// mockVector is the fixed embedding returned for every input.
var mockVector = []float32{0, 1, 0}

// Embedder returns the same fixed vector for every text.
type Embedder struct{}

func (Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, len(mockVector))
		copy(v, mockVector)
		vecs[i] = v
	}
	return vecs, nil
}

// Chat replies with MockAnswer regardless of the prompt.
type Chat struct{}

func (Chat) Complete(context.Context, provider.ChatRequest) (string, error) {
	return MockAnswer, nil
}

// Docs is an in-memory DocumentStore ranking by dot product. It is
// good enough for offline hosts and tests; real deployments use the
// chromem-backed store.
type Docs struct {
	mu   sync.RWMutex
	docs map[string]provider.Document
}

// NewDocs returns an empty in-memory document store.
func NewDocs() *Docs {
	return &Docs{docs: make(map[string]provider.Document)}
}

func (d *Docs) Upsert(_ context.Context, docs []provider.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, doc := range docs {
		d.docs[doc.ID] = doc
	}
	return nil
}

func (d *Docs) QueryTopK(_ context.Context, embedding []float32, k int, filter map[string]string) ([]provider.Hit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	hits := make([]provider.Hit, 0, len(d.docs))
	for _, doc := range d.docs {
		if !matches(doc.Metadata, filter) {
			continue
		}

		hits = append(hits, provider.Hit{
			ID:       doc.ID,
			Text:     doc.Text,
			Score:    dot(embedding, doc.Embedding),
			Metadata: doc.Metadata,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
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

func dot(a, b []float32) float32 {
	var sum float32
	for i := 0; i < len(a) && i < len(b); i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// Blobs keeps payloads in a mutex-guarded map, copying on save and
// retrieval so callers cannot mutate internal buffers.
type Blobs struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewBlobs returns an empty in-memory blob store.
func NewBlobs() *Blobs {
	return &Blobs{blobs: make(map[string][]byte)}
}

func (b *Blobs) Put(_ context.Context, key string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	b.blobs[key] = cp
	return "memory://" + key, nil
}

func (b *Blobs) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.blobs[key]
	if !ok {
		return nil, errors.Wrap(provider.ErrNotFound, "", j.KV("key", key))
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

var (
	_ provider.Embedder      = Embedder{}
	_ provider.Chat          = Chat{}
	_ provider.DocumentStore = (*Docs)(nil)
	_ provider.BlobStore     = (*Blobs)(nil)
)
