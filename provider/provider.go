// Package provider defines the external collaborator interfaces the
// workflows depend on. Implementations live in sub-packages so hosts
// choose concrete backends at startup and business logic never
// branches on provider identity.
package provider

import (
	"context"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
)

// ErrNotFound is returned by stores when the requested key does not exist.
var ErrNotFound = errors.New("not found", j.C("ERR_6e1d2c9a40f3b857"))

// Embedder turns text into embedding vectors. Implementations must
// return one vector per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatRequest is a single-turn completion request.
type ChatRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int64
}

// Chat produces a completion for a prompt.
type Chat interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// Document is a stored, embedded piece of text.
type Document struct {
	ID        string
	Text      string
	Metadata  map[string]string
	Embedding []float32
}

// Hit is a retrieval result ordered by descending similarity.
type Hit struct {
	ID       string
	Text     string
	Score    float32
	Metadata map[string]string
}

// DocumentStore stores embedded documents and answers similarity queries.
type DocumentStore interface {
	// Upsert stores docs, replacing any existing document with the same ID.
	Upsert(ctx context.Context, docs []Document) error

	// QueryTopK returns up to k hits most similar to embedding, in
	// descending score order. A non-empty filter restricts candidates to
	// documents whose metadata matches every filter entry. Fewer than k
	// documents in the store is not an error.
	QueryTopK(ctx context.Context, embedding []float32, k int, filter map[string]string) ([]Hit, error)
}

// BlobStore stores raw payloads by key.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) (url string, err error)
	Get(ctx context.Context, key string) ([]byte, error)
}
