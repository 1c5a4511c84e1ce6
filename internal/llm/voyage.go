package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	// DefaultVoyageModel is the default Voyage AI embedding model.
	// Anthropic has no native embedding API; Voyage is their
	// recommended embedding partner.
	// See: https://docs.anthropic.com/en/docs/build-with-claude/embeddings
	DefaultVoyageModel = "voyage-3"

	// voyageEndpoint is the Voyage AI API endpoint.
	voyageEndpoint = "https://api.voyageai.com/v1/embeddings"
)

// voyageClient calls the Voyage AI embeddings API. It implements
// langchaingo's embeddings.Embedder so it plugs into Embedder like the
// other providers.
type voyageClient struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// newVoyageClient creates an embedding client for Voyage AI. The key
// is a Voyage key, not an Anthropic one.
func newVoyageClient(apiKey, model string) (*voyageClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Voyage API key required")
	}
	if model == "" {
		model = DefaultVoyageModel
	}
	return &voyageClient{
		apiKey:   apiKey,
		model:    model,
		endpoint: voyageEndpoint,
		client:   &http.Client{},
	}, nil
}

type voyageRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type voyageResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// EmbedDocuments implements embeddings.Embedder.
func (c *voyageClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body, err := json.Marshal(voyageRequest{Input: texts, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("voyage API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var parsed voyageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(parsed.Data), len(texts))
	}

	// Responses may arrive out of order, reassemble by index
	embeddings := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(embeddings) {
			return nil, fmt.Errorf("invalid embedding index: %d", d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}

// EmbedQuery implements embeddings.Embedder.
func (c *voyageClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vectors[0], nil
}
