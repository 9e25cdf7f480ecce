// Package pipeline defines the snippet processing workflows: embedding
// generation with fan-out per chunk, the multi-agent code review, and
// snippet persistence. Workflow definitions are pure step functions;
// all provider I/O happens inside the registered activities.
package pipeline

import (
	"github.com/loomworks/loom"
	"github.com/loomworks/loom/guardrail"
	"github.com/loomworks/loom/provider"
)

// Workflow kinds.
const (
	WorkflowEmbeddings  = "embeddings"
	WorkflowCodeReview  = "code-review"
	WorkflowSaveSnippet = "save-snippet"
)

// Activity names.
const (
	ActivityLoadSnippet    = "load-snippet"
	ActivityReviewCode     = "review-code"
	ActivityWriteDocs      = "write-documentation"
	ActivityWriteTests     = "write-tests"
	ActivityEmbedChunk     = "embed-chunk"
	ActivityPersistSnippet = "persist-snippet"
	ActivityUploadCode     = "upload-code"
	ActivityEmbedSnippet   = "embed-snippet"
	ActivityUpsertDocument = "upsert-document"
)

// Deps are the external collaborators the activities run against. The
// host wires real or stub implementations at startup; nothing in the
// workflows branches on which it got.
type Deps struct {
	Embedder provider.Embedder
	Store    provider.DocumentStore
	Blobs    provider.BlobStore
	Agents   Agents

	// Guardrail is applied to snippet code and agent output text.
	Guardrail guardrail.Policy

	// ChunkSize bounds the text pieces sent to the embedder. Zero means
	// chunk.DefaultSize.
	ChunkSize int
}

// Pipelines binds the workflow definitions to their dependencies.
type Pipelines struct {
	deps Deps
}

// New returns pipelines over deps.
func New(deps Deps) *Pipelines {
	return &Pipelines{deps: deps}
}

// Register adds all workflows and their activities to the engine.
func (p *Pipelines) Register(e *loom.Engine) {
	e.RegisterWorkflow(WorkflowEmbeddings, p.Embeddings)
	e.RegisterWorkflow(WorkflowCodeReview, p.CodeReview)
	e.RegisterWorkflow(WorkflowSaveSnippet, p.SaveSnippet)

	e.RegisterActivity(ActivityLoadSnippet, p.loadSnippet)
	e.RegisterActivity(ActivityReviewCode, p.reviewCode)
	e.RegisterActivity(ActivityWriteDocs, p.writeDocs)
	e.RegisterActivity(ActivityWriteTests, p.writeTests)
	e.RegisterActivity(ActivityEmbedChunk, p.embedChunk)
	e.RegisterActivity(ActivityPersistSnippet, p.persistSnippet)
	e.RegisterActivity(ActivityUploadCode, p.uploadCode)
	e.RegisterActivity(ActivityEmbedSnippet, p.embedSnippet)
	e.RegisterActivity(ActivityUpsertDocument, p.upsertDocument)
}
