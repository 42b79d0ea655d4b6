package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ServiceEmbedder calls an external embedding service over HTTP. The service
// exposes GET /healthz and POST /embed with {"texts": [...]} returning
// {"vectors": [[...], ...]}.
type ServiceEmbedder struct {
	baseURL    string
	dim        int
	httpClient *http.Client
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Vectors [][]float64 `json:"vectors"`
	Error   string      `json:"error,omitempty"`
}

// NewServiceEmbedder verifies the service is reachable before returning. An
// unreachable embedding model is a fatal initialization error, not a per-call
// error.
func NewServiceEmbedder(ctx context.Context, baseURL string, dim int) (*ServiceEmbedder, error) {
	if dim <= 0 {
		dim = defaultDim
	}
	e := &ServiceEmbedder{
		baseURL:    baseURL,
		dim:        dim,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return nil, fmt.Errorf("embed service health request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed service unreachable at %s: %w", baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed service unhealthy: status %d", resp.StatusCode)
	}
	return e, nil
}

func (e *ServiceEmbedder) Dim() int { return e.dim }

func (e *ServiceEmbedder) Embed(text string) ([]float64, error) {
	vecs, err := e.EmbedBatch([]string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *ServiceEmbedder) EmbedBatch(texts []string) ([][]float64, error) {
	payload, err := json.Marshal(embedRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}
	resp, err := e.httpClient.Post(e.baseURL+"/embed", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed service returned status %d", resp.StatusCode)
	}
	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("embed service error: %s", out.Error)
	}
	if len(out.Vectors) != len(texts) {
		return nil, fmt.Errorf("embed service returned %d vectors for %d texts", len(out.Vectors), len(texts))
	}
	for i, v := range out.Vectors {
		if len(v) != e.dim {
			return nil, fmt.Errorf("embed service returned vector %d with dim %d, expected %d", i, len(v), e.dim)
		}
	}
	return out.Vectors, nil
}
