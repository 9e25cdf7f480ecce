package pipeline_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom"
	"github.com/loomworks/loom/adapters/memstore"
	"github.com/loomworks/loom/guardrail"
	"github.com/loomworks/loom/pipeline"
	"github.com/loomworks/loom/provider/stub"
)

type fixture struct {
	engine *loom.Engine
	store  *memstore.Store
	docs   *stub.Docs
	blobs  *stub.Blobs
}

func setup(t *testing.T) *fixture {
	return setupAgents(t, pipeline.StaticAgents())
}

func setupAgents(t *testing.T, agents pipeline.Agents) *fixture {
	store := memstore.New()
	docs := stub.NewDocs()
	blobs := stub.NewBlobs()

	p := pipeline.New(pipeline.Deps{
		Embedder:  stub.Embedder{},
		Store:     docs,
		Blobs:     blobs,
		Agents:    agents,
		Guardrail: guardrail.Policy{TokenLimit: 4000, ContentFilter: true},
		ChunkSize: 800,
	})

	engine := loom.New(store)
	p.Register(engine)
	engine.Run(context.Background())
	t.Cleanup(engine.Stop)

	return &fixture{engine: engine, store: store, docs: docs, blobs: blobs}
}

func awaitResult[T any](t *testing.T, f *fixture, instanceID string) T {
	t.Helper()

	status, err := f.engine.Await(context.Background(), instanceID,
		loom.WithPollingFrequency(time.Millisecond))
	jtest.RequireNil(t, err)
	require.Equal(t, loom.StatusCompleted, status.Status)

	var result T
	jtest.RequireNil(t, loom.Unmarshal(status.Output, &result))
	return result
}

func TestEmbeddingsFanOut(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	id, err := f.engine.Submit(ctx, pipeline.WorkflowEmbeddings, pipeline.EmbeddingsInput{
		ProjectID: "proj",
		Snippets: []pipeline.Snippet{
			{Name: "calc", Code: strings.Repeat("x", 2000)},
		},
	})
	jtest.RequireNil(t, err)

	result := awaitResult[pipeline.EmbeddingsResult](t, f, id)
	require.True(t, result.OK)
	require.Equal(t, "proj", result.ProjectID)
	require.Equal(t, 3, result.TotalChunks)
	require.Equal(t, []pipeline.SnippetOutcome{
		{Name: "calc", Chunks: 3, DocID: "proj/calc"},
	}, result.Snippets)

	// Mean of three identical mock vectors is the mock vector itself.
	hits, err := f.docs.QueryTopK(ctx, []float32{0, 1, 0}, 1, nil)
	jtest.RequireNil(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "proj/calc", hits[0].ID)
}

func TestEmbeddingsInvalidInput(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		input   pipeline.EmbeddingsInput
		wantErr string
	}{
		{
			name:    "missing project",
			input:   pipeline.EmbeddingsInput{Snippets: []pipeline.Snippet{{Name: "a", Code: "b"}}},
			wantErr: "projectId is required",
		},
		{
			name:    "no snippets",
			input:   pipeline.EmbeddingsInput{ProjectID: "p"},
			wantErr: "at least one snippet is required",
		},
		{
			name:    "snippet without name",
			input:   pipeline.EmbeddingsInput{ProjectID: "p", Snippets: []pipeline.Snippet{{Code: "b"}}},
			wantErr: "snippet name is required",
		},
		{
			name:    "snippet without code",
			input:   pipeline.EmbeddingsInput{ProjectID: "p", Snippets: []pipeline.Snippet{{Name: "a"}}},
			wantErr: "snippet code is required",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id, err := f.engine.Submit(ctx, pipeline.WorkflowEmbeddings, tc.input)
			jtest.RequireNil(t, err)

			result := awaitResult[pipeline.EmbeddingsResult](t, f, id)
			require.False(t, result.OK)
			require.Equal(t, tc.wantErr, result.Error)

			// Handled locally: nothing was scheduled.
			events, err := f.store.ListEvents(ctx, id)
			jtest.RequireNil(t, err)
			require.Empty(t, events)
		})
	}
}

func TestCodeReviewMissingSnippetID(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	id, err := f.engine.Submit(ctx, pipeline.WorkflowCodeReview, pipeline.CodeReviewInput{})
	jtest.RequireNil(t, err)

	result := awaitResult[pipeline.CodeReviewResult](t, f, id)
	require.False(t, result.OK)
	require.Equal(t, "snippetId is required", result.Error)
	require.Equal(t, id, result.CorrelationID)

	events, err := f.store.ListEvents(ctx, id)
	jtest.RequireNil(t, err)
	require.Empty(t, events)
}

func TestCodeReviewWorkflow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	code := "def main():\n    print(\"cleanup: rm -rf /tmp\")\n"
	_, err := f.blobs.Put(ctx, "snippets/default-project/demo", []byte(code))
	jtest.RequireNil(t, err)

	id, err := f.engine.Submit(ctx, pipeline.WorkflowCodeReview, pipeline.CodeReviewInput{
		SnippetID: "demo",
	})
	jtest.RequireNil(t, err)

	result := awaitResult[pipeline.CodeReviewResult](t, f, id)
	require.True(t, result.OK)
	require.Equal(t, id, result.CorrelationID)

	// The dangerous shell fragment was redacted before any agent saw it.
	require.Contains(t, result.Guardrails, guardrail.IssueContentBlocked)

	review := result.Agents.Review
	require.Equal(t, "Review executed (mock)", review.Summary)
	require.Len(t, review.Issues, 1)
	require.Equal(t, "style", review.Issues[0].Type)
	require.Equal(t, id, review.CorrelationID)

	docs := result.Agents.Documentation
	require.Contains(t, docs.Markdown, "# Code Documentation")
	require.Contains(t, docs.Markdown, "Issues found: 1")
	require.Contains(t, docs.Markdown, "Adopt logging best practices")
	require.Equal(t, id, docs.CorrelationID)

	plan := result.Agents.Testing
	require.Equal(t, 1, plan.Count)
	require.Equal(t, "test_function_exists", plan.Tests[0].Name)
	require.Equal(t, id, plan.CorrelationID)
}

// unsafeTester emits a test plan carrying a denylisted shell fragment,
// regardless of input.
type unsafeTester struct{}

func (unsafeTester) GenerateTests(context.Context, string, pipeline.Review) (pipeline.TestPlan, error) {
	return pipeline.TestPlan{
		Tests: []pipeline.TestCase{{
			Name:        "test_cleanup",
			Description: "wipes scratch space with rm -rf before asserting",
			Code:        "os.system('rm -rf /tmp/scratch')",
		}},
		Count: 1,
	}, nil
}

func TestCodeReviewGuardsTestingOutput(t *testing.T) {
	agents := pipeline.StaticAgents()
	agents.Tester = unsafeTester{}
	f := setupAgents(t, agents)
	ctx := context.Background()

	// The snippet itself is clean; only the testing agent's output
	// carries denylisted text.
	_, err := f.blobs.Put(ctx, "snippets/default-project/demo", []byte("def main():\n    return 1\n"))
	jtest.RequireNil(t, err)

	id, err := f.engine.Submit(ctx, pipeline.WorkflowCodeReview, pipeline.CodeReviewInput{
		SnippetID: "demo",
	})
	jtest.RequireNil(t, err)

	result := awaitResult[pipeline.CodeReviewResult](t, f, id)
	require.True(t, result.OK)

	plan := result.Agents.Testing
	require.Len(t, plan.Tests, 1)
	require.NotContains(t, plan.Tests[0].Code, "rm -rf")
	require.NotContains(t, plan.Tests[0].Description, "rm -rf")
	require.Contains(t, plan.Tests[0].Code, "[REDACTED]")
	require.Contains(t, result.Guardrails, guardrail.IssueContentBlocked)
}

func TestCodeReviewMissingSnippet(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// No blob stored: the load activity yields an empty snippet and the
	// agents run over empty code.
	id, err := f.engine.Submit(ctx, pipeline.WorkflowCodeReview, pipeline.CodeReviewInput{
		SnippetID: "ghost",
	})
	jtest.RequireNil(t, err)

	result := awaitResult[pipeline.CodeReviewResult](t, f, id)
	require.True(t, result.OK)
	require.Empty(t, result.Agents.Review.Issues)
	require.Zero(t, result.Agents.Testing.Count)
}

func TestSaveSnippet(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	id, err := f.engine.Submit(ctx, pipeline.WorkflowSaveSnippet, pipeline.SaveSnippetInput{
		Name:      "greet",
		ProjectID: "proj",
		Code:      "func greet() {}",
	})
	jtest.RequireNil(t, err)

	result := awaitResult[pipeline.SaveSnippetResult](t, f, id)
	require.True(t, result.OK)
	require.Equal(t, "proj/greet", result.ID)
	require.Equal(t, "proj", result.ProjectID)
	require.Equal(t, "memory://snippets/proj/greet", result.BlobURL)
	require.Equal(t, "completed", result.Status)

	data, err := f.blobs.Get(ctx, "snippets/proj/greet")
	jtest.RequireNil(t, err)
	require.Equal(t, "func greet() {}", string(data))

	hits, err := f.docs.QueryTopK(ctx, []float32{0, 1, 0}, 1, nil)
	jtest.RequireNil(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "proj/greet", hits[0].ID)
	require.Equal(t, result.BlobURL, hits[0].Metadata["blobUrl"])
}

func TestSaveSnippetMissingFields(t *testing.T) {
	f := setup(t)

	id, err := f.engine.Submit(context.Background(), pipeline.WorkflowSaveSnippet, pipeline.SaveSnippetInput{
		Name: "no-code",
	})
	jtest.RequireNil(t, err)

	result := awaitResult[pipeline.SaveSnippetResult](t, f, id)
	require.False(t, result.OK)
	require.Equal(t, "name and code are required", result.Error)
}

func TestEmbeddingsRepeatable(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	input := pipeline.EmbeddingsInput{
		ProjectID: "proj",
		Snippets:  []pipeline.Snippet{{Name: "a", Code: strings.Repeat("y", 1200)}},
	}

	first, err := f.engine.Submit(ctx, pipeline.WorkflowEmbeddings, input)
	jtest.RequireNil(t, err)
	second, err := f.engine.Submit(ctx, pipeline.WorkflowEmbeddings, input)
	jtest.RequireNil(t, err)

	a := awaitResult[pipeline.EmbeddingsResult](t, f, first)
	b := awaitResult[pipeline.EmbeddingsResult](t, f, second)
	require.Equal(t, a, b)
}
