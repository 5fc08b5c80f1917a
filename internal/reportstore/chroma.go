package reportstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// ChromaClient implements Store using the Chroma HTTP API (v1).
// The collection is resolved lazily on first use with get_or_create
// semantics, so a fresh Chroma instance needs no manual setup.
type ChromaClient struct {
	baseURL    string
	collection string
	client     *http.Client

	mu           sync.Mutex
	collectionID string
}

// NewChromaClient creates a new Chroma report store client.
func NewChromaClient(baseURL, collection string, timeout time.Duration) *ChromaClient {
	return &ChromaClient{
		baseURL:    baseURL,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

func (c *ChromaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/heartbeat", nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: heartbeat status %d", ErrStoreUnreachable, resp.StatusCode)
	}
	return nil
}

func (c *ChromaClient) Add(ctx context.Context, id, document string, embedding []float32, metadata map[string]any) error {
	collID, err := c.ensureCollection(ctx)
	if err != nil {
		return err
	}
	body := map[string]any{
		"ids":        []string{id},
		"documents":  []string{document},
		"embeddings": [][]float32{embedding},
		"metadatas":  []map[string]any{metadata},
	}
	return c.post(ctx, fmt.Sprintf("/api/v1/collections/%s/add", collID), body, nil)
}

func (c *ChromaClient) Get(ctx context.Context, id string) (*Result, error) {
	results, err := c.get(ctx, map[string]any{
		"ids":     []string{id},
		"include": []string{"documents", "metadatas"},
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrReportNotFound
	}
	return &results[0], nil
}

func (c *ChromaClient) GetByDate(ctx context.Context, date string) (*Result, error) {
	results, err := c.get(ctx, map[string]any{
		"where":   map[string]any{"date": map[string]any{"$eq": date}},
		"include": []string{"documents", "metadatas"},
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrReportNotFound
	}
	return &results[0], nil
}

func (c *ChromaClient) All(ctx context.Context) ([]Result, error) {
	return c.get(ctx, map[string]any{
		"include": []string{"documents", "metadatas"},
	})
}

func (c *ChromaClient) Query(ctx context.Context, embedding []float32, k int) ([]Result, error) {
	collID, err := c.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 1
	}
	body := map[string]any{
		"query_embeddings": [][]float32{embedding},
		"n_results":        k,
		"include":          []string{"documents", "metadatas", "distances"},
	}

	var queryResp chromaQueryResponse
	if err := c.post(ctx, fmt.Sprintf("/api/v1/collections/%s/query", collID), body, &queryResp); err != nil {
		return nil, err
	}

	results := []Result{}
	if len(queryResp.IDs) == 0 {
		return results, nil
	}
	for i, id := range queryResp.IDs[0] {
		r := Result{ID: id}
		if len(queryResp.Documents) > 0 && i < len(queryResp.Documents[0]) {
			r.Document = queryResp.Documents[0][i]
		}
		if len(queryResp.Metadatas) > 0 && i < len(queryResp.Metadatas[0]) {
			r.Metadata = queryResp.Metadatas[0][i]
		}
		if len(queryResp.Distances) > 0 && i < len(queryResp.Distances[0]) {
			r.Distance = queryResp.Distances[0][i]
		}
		results = append(results, r)
	}
	return results, nil
}

func (c *ChromaClient) Count(ctx context.Context) (int, error) {
	collID, err := c.ensureCollection(ctx)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v1/collections/%s/count", c.baseURL, collID), nil)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, classifyError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: count status %d", ErrStoreRequest, resp.StatusCode)
	}

	var count int
	if err := json.NewDecoder(resp.Body).Decode(&count); err != nil {
		return 0, fmt.Errorf("decoding count response: %w", err)
	}
	return count, nil
}

func (c *ChromaClient) Delete(ctx context.Context, id string) error {
	collID, err := c.ensureCollection(ctx)
	if err != nil {
		return err
	}
	return c.post(ctx, fmt.Sprintf("/api/v1/collections/%s/delete", collID),
		map[string]any{"ids": []string{id}}, nil)
}

// get runs a Chroma /get call with the given body and flattens the response.
func (c *ChromaClient) get(ctx context.Context, body map[string]any) ([]Result, error) {
	collID, err := c.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}

	var getResp chromaGetResponse
	if err := c.post(ctx, fmt.Sprintf("/api/v1/collections/%s/get", collID), body, &getResp); err != nil {
		return nil, err
	}

	results := []Result{}
	for i, id := range getResp.IDs {
		r := Result{ID: id}
		if i < len(getResp.Documents) {
			r.Document = getResp.Documents[i]
		}
		if i < len(getResp.Metadatas) {
			r.Metadata = getResp.Metadatas[i]
		}
		results = append(results, r)
	}
	return results, nil
}

// ensureCollection resolves the collection id, creating the collection if needed.
func (c *ChromaClient) ensureCollection(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.collectionID != "" {
		return c.collectionID, nil
	}

	var coll chromaCollection
	err := c.post(ctx, "/api/v1/collections", map[string]any{
		"name":          c.collection,
		"get_or_create": true,
	}, &coll)
	if err != nil {
		return "", err
	}
	if coll.ID == "" {
		return "", fmt.Errorf("%w: collection response missing id", ErrStoreRequest)
	}
	c.collectionID = coll.ID
	return c.collectionID, nil
}

func (c *ChromaClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: %s status %d", ErrStoreRequest, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	return fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
}

// --- Chroma response types ---

type chromaCollection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type chromaGetResponse struct {
	IDs       []string         `json:"ids"`
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
}

type chromaQueryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]string         `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float64        `json:"distances"`
}

// Compile-time check that ChromaClient implements Store.
var _ Store = (*ChromaClient)(nil)
