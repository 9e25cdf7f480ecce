package pipeline

import "strings"

// Snippet is a stored piece of source code.
type Snippet struct {
	Name        string `json:"name"`
	ProjectID   string `json:"projectId"`
	Code        string `json:"code"`
	Language    string `json:"language,omitempty"`
	Description string `json:"description,omitempty"`
}

// EmbeddingsInput starts the embeddings workflow.
type EmbeddingsInput struct {
	ProjectID string    `json:"projectId"`
	Snippets  []Snippet `json:"snippets"`
}

// validate mirrors the submission contract: a project id plus at least
// one snippet, each carrying a name and code.
func (in EmbeddingsInput) validate() string {
	if strings.TrimSpace(in.ProjectID) == "" {
		return "projectId is required"
	}
	if len(in.Snippets) == 0 {
		return "at least one snippet is required"
	}
	for _, s := range in.Snippets {
		if strings.TrimSpace(s.Name) == "" {
			return "snippet name is required"
		}
		if s.Code == "" {
			return "snippet code is required"
		}
	}
	return ""
}

// SnippetOutcome reports per-snippet persistence results.
type SnippetOutcome struct {
	Name   string `json:"name"`
	Chunks int    `json:"chunks"`
	DocID  string `json:"docId"`
}

// EmbeddingsResult is the embeddings workflow output.
type EmbeddingsResult struct {
	OK          bool             `json:"ok"`
	Error       string           `json:"error,omitempty"`
	ProjectID   string           `json:"projectId,omitempty"`
	Snippets    []SnippetOutcome `json:"snippets,omitempty"`
	TotalChunks int              `json:"totalChunks,omitempty"`
}

// CodeReviewInput starts the code review workflow.
type CodeReviewInput struct {
	ProjectID string `json:"projectId"`
	SnippetID string `json:"snippetId"`
}

// AgentInput is the shared payload handed to the agent activities. The
// review field is empty for the review agent itself and carries its
// output for the dependent documentation and testing agents.
type AgentInput struct {
	Code          string `json:"code"`
	Review        Review `json:"review,omitempty"`
	ProjectID     string `json:"projectId"`
	CorrelationID string `json:"correlationId"`
}

// AgentResults groups the agent outputs by role name.
type AgentResults struct {
	Review        Review        `json:"review"`
	Documentation Documentation `json:"documentation"`
	Testing       TestPlan      `json:"testing"`
}

// CodeReviewResult is the code review workflow output. CorrelationID
// equals the workflow instance id.
type CodeReviewResult struct {
	OK            bool         `json:"ok"`
	Error         string       `json:"error,omitempty"`
	CorrelationID string       `json:"correlationId"`
	Guardrails    []string     `json:"guardrails,omitempty"`
	Agents        AgentResults `json:"agents,omitempty"`
}

// SaveSnippetInput starts the save-snippet workflow.
type SaveSnippetInput struct {
	Name      string `json:"name"`
	ProjectID string `json:"projectId"`
	Code      string `json:"code"`
	Language  string `json:"language,omitempty"`
}

// SaveSnippetResult is the save-snippet workflow output.
type SaveSnippetResult struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	ID        string `json:"id,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
	BlobURL   string `json:"blobUrl,omitempty"`
	Status    string `json:"status,omitempty"`
}

// LoadSnippetInput fetches a snippet by name.
type LoadSnippetInput struct {
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
}

// EmbedChunkInput embeds one chunk of a snippet.
type EmbedChunkInput struct {
	ChunkIndex int    `json:"chunkIndex"`
	Text       string `json:"text"`
}

// PersistInput upserts an embedded snippet document.
type PersistInput struct {
	ProjectID   string    `json:"projectId"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Embedding   []float32 `json:"embedding"`
	Language    string    `json:"language,omitempty"`
	Description string    `json:"description,omitempty"`
}

// PersistResult reports the upserted document id.
type PersistResult struct {
	DocID string `json:"docId"`
}

// UploadInput stores the raw snippet code in the blob store.
type UploadInput struct {
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Code      string `json:"code"`
}

// UploadResult carries the stored blob's URL.
type UploadResult struct {
	URL string `json:"url"`
}

// UpsertDocumentInput stores the embedded snippet after the parallel
// upload and embed phase of the save-snippet workflow.
type UpsertDocumentInput struct {
	Name      string    `json:"name"`
	ProjectID string    `json:"projectId"`
	Code      string    `json:"code"`
	BlobURL   string    `json:"blobUrl"`
	Embedding []float32 `json:"embedding"`
	Language  string    `json:"language,omitempty"`
}

// docID is the stable upsert key for a snippet document.
func docID(projectID, name string) string {
	return projectID + "/" + name
}
