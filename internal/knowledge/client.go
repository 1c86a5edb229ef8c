package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Entry is one matching unit from the index. The engine treats entries
// as opaque search results; Title may be empty.
type Entry struct {
	Title string `json:"title,omitempty"`
}

// Result is a namespace-scoped search outcome. No matches is an
// empty-but-valid result, never an error.
type Result struct {
	Text    string  `json:"text"`
	Entries []Entry `json:"entries"`
}

// Searcher is the capability the tool layer consumes. The production
// implementation is Client; tests substitute fakes.
type Searcher interface {
	Search(ctx context.Context, namespace, query string, limit int) (*Result, error)
}

// Client talks to the external retrieval service that the ingestion
// pipeline populates. Namespace is always an organization id, which
// keeps search tenant-scoped.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8090"
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

type searchReq struct {
	Namespace string `json:"namespace"`
	Query     string `json:"query"`
	Limit     int    `json:"limit"`
}

type searchResp struct {
	Text    string  `json:"text"`
	Entries []Entry `json:"entries"`
	Error   string  `json:"error,omitempty"`
}

func (c *Client) Search(ctx context.Context, namespace, query string, limit int) (*Result, error) {
	if c.HTTP == nil {
		return nil, errors.New("knowledge: http client is nil")
	}
	if namespace == "" {
		return nil, errors.New("knowledge: namespace is required")
	}
	if limit <= 0 {
		limit = 5
	}

	b, err := json.Marshal(searchReq{Namespace: namespace, Query: query, Limit: limit})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/search", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("knowledge: status %d", resp.StatusCode)
	}

	var decoded searchResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Error != "" {
		return nil, errors.New(decoded.Error)
	}

	return &Result{Text: decoded.Text, Entries: decoded.Entries}, nil
}
