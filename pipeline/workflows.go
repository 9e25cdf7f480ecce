package pipeline

import (
	"strings"

	"github.com/loomworks/loom"
	"github.com/loomworks/loom/chunk"
	"github.com/loomworks/loom/guardrail"
)

// defaultProjectID is used when the caller does not scope the request.
const defaultProjectID = "default-project"

// Embeddings chunks each snippet, fans out one embedding call per
// chunk, aggregates the chunk vectors into a mean vector and persists
// the snippet document.
func (p *Pipelines) Embeddings(f *loom.Flow) (loom.Action, error) {
	var in EmbeddingsInput
	if err := f.Input(&in); err != nil {
		return loom.Action{}, err
	}

	if msg := in.validate(); msg != "" {
		return loom.Complete(EmbeddingsResult{Error: msg})
	}

	result := EmbeddingsResult{OK: true, ProjectID: in.ProjectID}
	for _, snippet := range in.Snippets {
		chunks := chunk.Split(snippet.Code, p.deps.ChunkSize)

		calls := make([]loom.ActivityCall, len(chunks))
		for i, text := range chunks {
			input, err := loom.Marshal(&EmbedChunkInput{ChunkIndex: i, Text: text})
			if err != nil {
				return loom.Action{}, err
			}
			calls[i] = loom.ActivityCall{Name: ActivityEmbedChunk, Input: input}
		}

		results, ok := f.CallAll(calls)
		if !ok {
			return f.Suspend()
		}

		vectors := make([][]float32, len(results))
		for i, res := range results {
			if err := loom.Unmarshal(res.Output, &vectors[i]); err != nil {
				return loom.Action{}, err
			}
		}

		input, err := loom.Marshal(&PersistInput{
			ProjectID:   in.ProjectID,
			Name:        snippet.Name,
			Code:        snippet.Code,
			Embedding:   meanVector(vectors),
			Language:    snippet.Language,
			Description: snippet.Description,
		})
		if err != nil {
			return loom.Action{}, err
		}

		res, ok := f.Call(loom.ActivityCall{Name: ActivityPersistSnippet, Input: input})
		if !ok {
			return f.Suspend()
		}

		var persisted PersistResult
		if err := loom.Unmarshal(res.Output, &persisted); err != nil {
			return loom.Action{}, err
		}

		result.Snippets = append(result.Snippets, SnippetOutcome{
			Name:   snippet.Name,
			Chunks: len(chunks),
			DocID:  persisted.DocID,
		})
		result.TotalChunks += len(chunks)
	}

	return loom.Complete(result)
}

// CodeReview loads a snippet, applies guardrails, runs the review agent
// sequentially and then the documentation and testing agents in
// parallel, each seeded with the review output. The correlation id is
// the workflow instance id.
func (p *Pipelines) CodeReview(f *loom.Flow) (loom.Action, error) {
	var in CodeReviewInput
	if err := f.Input(&in); err != nil {
		return loom.Action{}, err
	}

	corr := f.InstanceID()
	if strings.TrimSpace(in.SnippetID) == "" {
		return loom.Complete(CodeReviewResult{
			Error:         "snippetId is required",
			CorrelationID: corr,
		})
	}

	projectID := in.ProjectID
	if projectID == "" {
		projectID = defaultProjectID
	}

	loadInput, err := loom.Marshal(&LoadSnippetInput{ProjectID: projectID, Name: in.SnippetID})
	if err != nil {
		return loom.Action{}, err
	}

	loaded, ok := f.Call(loom.ActivityCall{Name: ActivityLoadSnippet, Input: loadInput})
	if !ok {
		return f.Suspend()
	}

	var snippet Snippet
	if err := loom.Unmarshal(loaded.Output, &snippet); err != nil {
		return loom.Action{}, err
	}

	issues := []string{}
	code := p.guard(snippet.Code, &issues)

	reviewInput, err := loom.Marshal(&AgentInput{
		Code:          code,
		ProjectID:     projectID,
		CorrelationID: corr,
	})
	if err != nil {
		return loom.Action{}, err
	}

	reviewed, ok := f.Call(loom.ActivityCall{Name: ActivityReviewCode, Input: reviewInput})
	if !ok {
		return f.Suspend()
	}

	var review Review
	if err := loom.Unmarshal(reviewed.Output, &review); err != nil {
		return loom.Action{}, err
	}

	review.Summary = p.guard(review.Summary, &issues)
	for i := range review.Issues {
		review.Issues[i].Message = p.guard(review.Issues[i].Message, &issues)
	}

	dependentInput, err := loom.Marshal(&AgentInput{
		Code:          code,
		Review:        review,
		ProjectID:     projectID,
		CorrelationID: corr,
	})
	if err != nil {
		return loom.Action{}, err
	}

	results, ok := f.CallAll([]loom.ActivityCall{
		{Name: ActivityWriteDocs, Input: dependentInput},
		{Name: ActivityWriteTests, Input: dependentInput},
	})
	if !ok {
		return f.Suspend()
	}

	var docs Documentation
	if err := loom.Unmarshal(results[0].Output, &docs); err != nil {
		return loom.Action{}, err
	}
	var plan TestPlan
	if err := loom.Unmarshal(results[1].Output, &plan); err != nil {
		return loom.Action{}, err
	}

	docs.Markdown = p.guard(docs.Markdown, &issues)
	for i := range plan.Tests {
		plan.Tests[i].Description = p.guard(plan.Tests[i].Description, &issues)
		plan.Tests[i].Code = p.guard(plan.Tests[i].Code, &issues)
	}

	return loom.Complete(CodeReviewResult{
		OK:            true,
		CorrelationID: corr,
		Guardrails:    issues,
		Agents: AgentResults{
			Review:        review,
			Documentation: docs,
			Testing:       plan,
		},
	})
}

// SaveSnippet uploads the raw code and embeds the whole snippet in
// parallel, then upserts the embedded document.
func (p *Pipelines) SaveSnippet(f *loom.Flow) (loom.Action, error) {
	var in SaveSnippetInput
	if err := f.Input(&in); err != nil {
		return loom.Action{}, err
	}

	if strings.TrimSpace(in.Name) == "" || in.Code == "" {
		return loom.Complete(SaveSnippetResult{Error: "name and code are required"})
	}

	projectID := in.ProjectID
	if projectID == "" {
		projectID = defaultProjectID
	}

	uploadInput, err := loom.Marshal(&UploadInput{ProjectID: projectID, Name: in.Name, Code: in.Code})
	if err != nil {
		return loom.Action{}, err
	}
	embedInput, err := loom.Marshal(&EmbedChunkInput{Text: in.Code})
	if err != nil {
		return loom.Action{}, err
	}

	results, ok := f.CallAll([]loom.ActivityCall{
		{Name: ActivityUploadCode, Input: uploadInput},
		{Name: ActivityEmbedSnippet, Input: embedInput},
	})
	if !ok {
		return f.Suspend()
	}

	var uploaded UploadResult
	if err := loom.Unmarshal(results[0].Output, &uploaded); err != nil {
		return loom.Action{}, err
	}
	var embedding []float32
	if err := loom.Unmarshal(results[1].Output, &embedding); err != nil {
		return loom.Action{}, err
	}

	upsertInput, err := loom.Marshal(&UpsertDocumentInput{
		Name:      in.Name,
		ProjectID: projectID,
		Code:      in.Code,
		BlobURL:   uploaded.URL,
		Embedding: embedding,
		Language:  in.Language,
	})
	if err != nil {
		return loom.Action{}, err
	}

	res, ok := f.Call(loom.ActivityCall{Name: ActivityUpsertDocument, Input: upsertInput})
	if !ok {
		return f.Suspend()
	}

	var persisted PersistResult
	if err := loom.Unmarshal(res.Output, &persisted); err != nil {
		return loom.Action{}, err
	}

	return loom.Complete(SaveSnippetResult{
		OK:        true,
		ID:        persisted.DocID,
		ProjectID: projectID,
		BlobURL:   uploaded.URL,
		Status:    "completed",
	})
}

// guard applies the workflow guardrail policy to one piece of agent
// text, folding any raised issues into the running list. Every textual
// field of an activity's output passes through here before it reaches
// shared context or the caller.
func (p *Pipelines) guard(text string, issues *[]string) string {
	verdict := guardrail.Apply(text, p.deps.Guardrail)
	*issues = append(*issues, verdict.Issues...)
	return verdict.Text
}

// meanVector averages the chunk vectors element-wise. The dimension is
// taken from the first vector; an empty input yields nil.
func meanVector(vectors [][]float32) []float32 {
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil
	}

	dim := len(vectors[0])
	sums := make([]float32, dim)
	for _, vec := range vectors {
		for i := 0; i < dim && i < len(vec); i++ {
			sums[i] += vec[i]
		}
	}

	mean := make([]float32, dim)
	for i, sum := range sums {
		mean[i] = sum / float32(len(vectors))
	}
	return mean
}
