package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RerankConfig configures the optional hosted reranker. An empty BaseURL
// disables reranking entirely.
type RerankConfig struct {
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	Model          string `json:"model"`
	TopN           int    `json:"top_n"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// RerankClient calls a cohere-compatible /v2/rerank endpoint to reorder the
// fused candidate pool by cross-attention relevance.
type RerankClient struct {
	cfg    RerankConfig
	client *http.Client
}

func NewRerankClient(cfg RerankConfig) *RerankClient {
	if cfg.BaseURL == "" {
		return nil
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 4
	}
	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &RerankClient{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (c *RerankClient) TopN() int {
	return c.cfg.TopN
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank returns indexes into docs ordered by relevance, best first, limited
// to TopN.
func (c *RerankClient) Rerank(ctx context.Context, query string, docs []string) ([]int, error) {
	body, err := json.Marshal(rerankRequest{
		Model:     c.cfg.Model,
		Query:     query,
		Documents: docs,
		TopN:      c.cfg.TopN,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v2/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	rsp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer rsp.Body.Close()
	if rsp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(rsp.Body, 512))
		return nil, fmt.Errorf("rerank status %d: %s", rsp.StatusCode, string(data))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(rsp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	indexes := make([]int, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.Index >= 0 && r.Index < len(docs) {
			indexes = append(indexes, r.Index)
		}
	}
	return indexes, nil
}
