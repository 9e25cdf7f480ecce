// Package rag answers questions grounded in retrieved snippet
// documents, with citations back to the documents actually used.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/loomworks/loom/provider"
)

const (
	// DefaultTopK is the number of nearest documents retrieved.
	DefaultTopK = 5

	// DefaultContextBudget bounds the assembled context in bytes.
	DefaultContextBudget = 8000

	// DefaultTemperature keeps generation close to the supplied context.
	DefaultTemperature = 0.2

	// NoContextAnswer is returned when retrieval yields nothing usable.
	// It is a defined branch, not an error.
	NoContextAnswer = "No relevant context found to answer the question."
)

const systemPrompt = "You are a concise assistant. Answer strictly from the " +
	"provided snippets; if they do not contain the answer, say so. Cite snippet ids."

// ErrQuestionRequired is returned for an empty question. No provider is
// called in that case.
var ErrQuestionRequired = errors.New("question is required", j.C("ERR_d40b52f1c7a3968e"))

// Citation points at a document included in the assembled context.
type Citation struct {
	DocumentID string  `json:"documentId"`
	Score      float32 `json:"score"`
}

// Answer is the generated text plus one citation per included document,
// in inclusion order.
type Answer struct {
	Text      string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// Service composes retrieval, context assembly and grounded generation.
type Service struct {
	embedder provider.Embedder
	store    provider.DocumentStore
	chat     provider.Chat

	topK        int
	budget      int
	temperature float64
}

// Option configures a Service.
type Option func(*Service)

// WithTopK overrides the retrieval depth.
func WithTopK(k int) Option {
	return func(s *Service) {
		s.topK = k
	}
}

// WithContextBudget overrides the context byte budget.
func WithContextBudget(n int) Option {
	return func(s *Service) {
		s.budget = n
	}
}

// WithTemperature overrides the generation temperature.
func WithTemperature(t float64) Option {
	return func(s *Service) {
		s.temperature = t
	}
}

// New returns a Service over the given providers.
func New(embedder provider.Embedder, store provider.DocumentStore, chat provider.Chat, opts ...Option) *Service {
	s := &Service{
		embedder:    embedder,
		store:       store,
		chat:        chat,
		topK:        DefaultTopK,
		budget:      DefaultContextBudget,
		temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask embeds the question, retrieves the top-K nearest documents,
// assembles a context greedily in score order under the byte budget
// (documents are included whole or skipped, never truncated) and
// generates a grounded answer. A non-empty projectID restricts
// retrieval to that project's documents. Citations correspond 1:1 to
// the documents included, in inclusion order.
func (s *Service) Ask(ctx context.Context, question, projectID string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, errors.Wrap(ErrQuestionRequired, "")
	}

	vecs, err := s.embedder.Embed(ctx, []string{question})
	if err != nil {
		return Answer{}, errors.Wrap(err, "embed question")
	}
	if len(vecs) != 1 {
		return Answer{}, errors.New("embedder returned wrong vector count")
	}

	var filter map[string]string
	if projectID != "" {
		filter = map[string]string{"projectId": projectID}
	}

	hits, err := s.store.QueryTopK(ctx, vecs[0], s.topK, filter)
	if err != nil {
		return Answer{}, errors.Wrap(err, "retrieve context")
	}

	var (
		parts     []string
		citations []Citation
		used      int
	)
	for _, hit := range hits {
		part := fmt.Sprintf("[%s]\n%s", hit.ID, hit.Text)
		if used+len(part) > s.budget {
			// Too large to fit whole; skip rather than truncate.
			continue
		}
		parts = append(parts, part)
		citations = append(citations, Citation{DocumentID: hit.ID, Score: hit.Score})
		used += len(part)
	}

	if len(parts) == 0 {
		return Answer{Text: NoContextAnswer, Citations: []Citation{}}, nil
	}

	text, err := s.chat.Complete(ctx, provider.ChatRequest{
		System:      systemPrompt,
		Prompt:      fmt.Sprintf("Question: %s\n\nSnippets:\n%s", question, strings.Join(parts, "\n---\n")),
		Temperature: s.temperature,
	})
	if err != nil {
		return Answer{}, errors.Wrap(err, "generate answer")
	}

	return Answer{Text: text, Citations: citations}, nil
}
