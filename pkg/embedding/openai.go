package embedding

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Dimensions of the known OpenAI embedding models.
var modelDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

// DefaultModel is used when no model is configured.
const DefaultModel = "text-embedding-3-small"

// OpenAIEmbedder embeds text through the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dim    int
}

// NewOpenAIEmbedder creates an embedder for the given API key and model.
// An empty model selects DefaultModel.
func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("embedding: API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	dim, ok := modelDimensions[model]
	if !ok {
		dim = modelDimensions[DefaultModel]
	}

	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  model,
		dim:    dim,
	}, nil
}

// NewOpenAIEmbedderWithClient wraps an existing client, e.g. one configured
// for an Azure or compatible endpoint.
func NewOpenAIEmbedderWithClient(client *openai.Client, model string, dim int) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client, model: model, dim: dim}
}

// Dim returns the dimensionality of the configured model.
func (e *OpenAIEmbedder) Dim() int {
	return e.dim
}

// EmbedDocuments embeds a batch of texts in one API call.
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d for %d texts", ErrBadResponse, len(resp.Data), len(texts))
	}

	// The API does not guarantee response order; Index does.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrBadResponse, d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		copy(vec, d.Embedding)
		vectors[d.Index] = vec
	}
	for i, vec := range vectors {
		if vec == nil {
			return nil, fmt.Errorf("%w: missing vector for input %d", ErrBadResponse, i)
		}
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
