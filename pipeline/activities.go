package pipeline

import (
	"context"

	"github.com/luno/jettison/errors"

	"github.com/loomworks/loom"
	"github.com/loomworks/loom/provider"
)

// blobKey is the stable blob store key for a snippet's raw code.
func blobKey(projectID, name string) string {
	return "snippets/" + projectID + "/" + name
}

// loadSnippet fetches a snippet's code from the blob store. A missing
// snippet yields an empty-code snippet, not a failure; the workflow
// decides what an empty snippet means.
func (p *Pipelines) loadSnippet(ctx context.Context, input []byte) ([]byte, error) {
	var in LoadSnippetInput
	if err := loom.Unmarshal(input, &in); err != nil {
		return nil, loom.Permanent(err)
	}

	snippet := Snippet{Name: in.Name, ProjectID: in.ProjectID}

	data, err := p.deps.Blobs.Get(ctx, blobKey(in.ProjectID, in.Name))
	if errors.Is(err, provider.ErrNotFound) {
		return loom.Marshal(&snippet)
	} else if err != nil {
		return nil, err
	}

	snippet.Code = string(data)
	return loom.Marshal(&snippet)
}

func (p *Pipelines) reviewCode(ctx context.Context, input []byte) ([]byte, error) {
	var in AgentInput
	if err := loom.Unmarshal(input, &in); err != nil {
		return nil, loom.Permanent(err)
	}

	review, err := p.deps.Agents.Reviewer.Review(ctx, in.Code)
	if err != nil {
		return nil, err
	}

	review.CorrelationID = in.CorrelationID
	return loom.Marshal(&review)
}

func (p *Pipelines) writeDocs(ctx context.Context, input []byte) ([]byte, error) {
	var in AgentInput
	if err := loom.Unmarshal(input, &in); err != nil {
		return nil, loom.Permanent(err)
	}

	docs, err := p.deps.Agents.Documenter.Document(ctx, in.Code, in.Review)
	if err != nil {
		return nil, err
	}

	docs.CorrelationID = in.CorrelationID
	return loom.Marshal(&docs)
}

func (p *Pipelines) writeTests(ctx context.Context, input []byte) ([]byte, error) {
	var in AgentInput
	if err := loom.Unmarshal(input, &in); err != nil {
		return nil, loom.Permanent(err)
	}

	plan, err := p.deps.Agents.Tester.GenerateTests(ctx, in.Code, in.Review)
	if err != nil {
		return nil, err
	}

	plan.CorrelationID = in.CorrelationID
	return loom.Marshal(&plan)
}

// embedChunk embeds one chunk of text. Empty text yields an empty
// vector without a provider call.
func (p *Pipelines) embedChunk(ctx context.Context, input []byte) ([]byte, error) {
	var in EmbedChunkInput
	if err := loom.Unmarshal(input, &in); err != nil {
		return nil, loom.Permanent(err)
	}

	vec := []float32{}
	if in.Text != "" {
		vecs, err := p.deps.Embedder.Embed(ctx, []string{in.Text})
		if err != nil {
			return nil, err
		}
		if len(vecs) != 1 {
			return nil, loom.Permanent(errors.New("embedder returned wrong vector count"))
		}
		vec = vecs[0]
	}

	return loom.Marshal(&vec)
}

// persistSnippet upserts the aggregated snippet document. The document
// id is stable so retries are idempotent.
func (p *Pipelines) persistSnippet(ctx context.Context, input []byte) ([]byte, error) {
	var in PersistInput
	if err := loom.Unmarshal(input, &in); err != nil {
		return nil, loom.Permanent(err)
	}

	id := docID(in.ProjectID, in.Name)
	doc := provider.Document{
		ID:   id,
		Text: in.Code,
		Metadata: map[string]string{
			"name":        in.Name,
			"projectId":   in.ProjectID,
			"language":    in.Language,
			"description": in.Description,
		},
		Embedding: in.Embedding,
	}
	if err := p.deps.Store.Upsert(ctx, []provider.Document{doc}); err != nil {
		return nil, err
	}

	res := PersistResult{DocID: id}
	return loom.Marshal(&res)
}

// uploadCode stores the raw snippet code under a stable key and returns
// the resulting URL.
func (p *Pipelines) uploadCode(ctx context.Context, input []byte) ([]byte, error) {
	var in UploadInput
	if err := loom.Unmarshal(input, &in); err != nil {
		return nil, loom.Permanent(err)
	}

	url, err := p.deps.Blobs.Put(ctx, blobKey(in.ProjectID, in.Name), []byte(in.Code))
	if err != nil {
		return nil, err
	}

	res := UploadResult{URL: url}
	return loom.Marshal(&res)
}

// embedSnippet embeds a whole snippet in one provider call.
func (p *Pipelines) embedSnippet(ctx context.Context, input []byte) ([]byte, error) {
	return p.embedChunk(ctx, input)
}

func (p *Pipelines) upsertDocument(ctx context.Context, input []byte) ([]byte, error) {
	var in UpsertDocumentInput
	if err := loom.Unmarshal(input, &in); err != nil {
		return nil, loom.Permanent(err)
	}

	id := docID(in.ProjectID, in.Name)
	doc := provider.Document{
		ID:   id,
		Text: in.Code,
		Metadata: map[string]string{
			"name":      in.Name,
			"projectId": in.ProjectID,
			"blobUrl":   in.BlobURL,
			"language":  in.Language,
		},
		Embedding: in.Embedding,
	}
	if err := p.deps.Store.Upsert(ctx, []provider.Document{doc}); err != nil {
		return nil, err
	}

	res := PersistResult{DocID: id}
	return loom.Marshal(&res)
}
