package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/licitaware/procurement-match-backend/internal/domain/errors"
	"github.com/licitaware/procurement-match-backend/internal/infrastructure/config"
)

// OpenAIVectorizer embeds text through the OpenAI embeddings endpoint. Any
// transport or non-2xx failure surfaces as REMOTE_UNAVAILABLE so the hybrid
// wrapper knows to fall back.
type OpenAIVectorizer struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	maxChars   int
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func NewOpenAIVectorizer(cfg *config.OpenAIConfig) *OpenAIVectorizer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIVectorizer{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		maxChars:   cfg.MaxChars,
	}
}

func (v *OpenAIVectorizer) ID() string {
	return "openai/" + v.model
}

func (v *OpenAIVectorizer) Dimensions() int {
	return v.dimensions
}

func (v *OpenAIVectorizer) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := v.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (v *OpenAIVectorizer) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))

	// Empty text never goes to the API; the zero vector is the non-matching
	// sentinel by construction.
	inputs := make([]string, 0, len(texts))
	positions := make([]int, 0, len(texts))
	for i, t := range texts {
		normalized := Normalize(t)
		if normalized == "" {
			out[i] = make([]float64, v.dimensions)
			continue
		}
		if v.maxChars > 0 && len(normalized) > v.maxChars {
			normalized = normalized[:v.maxChars]
		}
		inputs = append(inputs, normalized)
		positions = append(positions, i)
	}

	if len(inputs) == 0 {
		return out, nil
	}

	body, err := json.Marshal(embeddingRequest{
		Model:      v.model,
		Input:      inputs,
		Dimensions: v.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		v.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewRemoteUnavailableError("embedding backend unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.NewRemoteUnavailableError(
			fmt.Sprintf("embedding backend returned status %d: %s", resp.StatusCode, snippet))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.NewRemoteUnavailableError("embedding backend returned malformed response").WithCause(err)
	}
	if len(parsed.Data) != len(inputs) {
		return nil, errors.NewRemoteUnavailableError(
			fmt.Sprintf("embedding backend returned %d vectors for %d inputs", len(parsed.Data), len(inputs)))
	}

	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(positions) {
			return nil, errors.NewRemoteUnavailableError("embedding backend returned out-of-range index")
		}
		out[positions[d.Index]] = d.Embedding
	}

	return out, nil
}
