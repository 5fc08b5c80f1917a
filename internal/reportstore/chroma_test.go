package reportstore_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaeyoon-song/fabsight/internal/reportstore"
)

// fakeChroma is a minimal in-memory stand-in for the Chroma v1 HTTP API.
type fakeChroma struct {
	mux *http.ServeMux

	ids       []string
	documents []string
	metadatas []map[string]any

	queryResponse map[string]any
	requests      []string
}

func newFakeChroma() *fakeChroma {
	f := &fakeChroma{mux: http.NewServeMux()}

	f.mux.HandleFunc("GET /api/v1/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int64{"nanosecond heartbeat": time.Now().UnixNano()})
	})
	f.mux.HandleFunc("POST /api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		f.requests = append(f.requests, "collections")
		json.NewEncoder(w).Encode(map[string]string{"id": "coll-1", "name": "kpi_analysis_reports"})
	})
	f.mux.HandleFunc("POST /api/v1/collections/coll-1/add", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			IDs       []string         `json:"ids"`
			Documents []string         `json:"documents"`
			Metadatas []map[string]any `json:"metadatas"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.ids = append(f.ids, body.IDs...)
		f.documents = append(f.documents, body.Documents...)
		f.metadatas = append(f.metadatas, body.Metadatas...)
		w.WriteHeader(http.StatusCreated)
	})
	f.mux.HandleFunc("POST /api/v1/collections/coll-1/get", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			IDs   []string       `json:"ids"`
			Where map[string]any `json:"where"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		resp := map[string]any{"ids": []string{}, "documents": []string{}, "metadatas": []map[string]any{}}
		for i, id := range f.ids {
			if len(body.IDs) > 0 && body.IDs[0] != id {
				continue
			}
			if body.Where != nil {
				cond := body.Where["date"].(map[string]any)
				if f.metadatas[i]["date"] != cond["$eq"] {
					continue
				}
			}
			resp["ids"] = append(resp["ids"].([]string), id)
			resp["documents"] = append(resp["documents"].([]string), f.documents[i])
			resp["metadatas"] = append(resp["metadatas"].([]map[string]any), f.metadatas[i])
		}
		json.NewEncoder(w).Encode(resp)
	})
	f.mux.HandleFunc("POST /api/v1/collections/coll-1/query", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(f.queryResponse)
	})
	f.mux.HandleFunc("GET /api/v1/collections/coll-1/count", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(len(f.ids))
	})
	f.mux.HandleFunc("POST /api/v1/collections/coll-1/delete", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			IDs []string `json:"ids"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		for i, id := range f.ids {
			if len(body.IDs) > 0 && id == body.IDs[0] {
				f.ids = append(f.ids[:i], f.ids[i+1:]...)
				f.documents = append(f.documents[:i], f.documents[i+1:]...)
				f.metadatas = append(f.metadatas[:i], f.metadatas[i+1:]...)
				break
			}
		}
		json.NewEncoder(w).Encode([]string{})
	})

	return f
}

func setupClient(t *testing.T) (*reportstore.ChromaClient, *fakeChroma) {
	t.Helper()
	fake := newFakeChroma()
	srv := httptest.NewServer(fake.mux)
	t.Cleanup(srv.Close)
	return reportstore.NewChromaClient(srv.URL, "kpi_analysis_reports", 5*time.Second), fake
}

func TestChromaClient_Ping(t *testing.T) {
	client, _ := setupClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestChromaClient_Ping_Unreachable(t *testing.T) {
	client := reportstore.NewChromaClient("http://127.0.0.1:1", "x", time.Second)
	err := client.Ping(context.Background())
	assert.ErrorIs(t, err, reportstore.ErrStoreUnreachable)
}

func TestChromaClient_AddAndGet(t *testing.T) {
	client, fake := setupClient(t)
	ctx := context.Background()

	err := client.Add(ctx, "report_2026-05-01_EQP-001_OEE", "# 분석 리포트",
		[]float32{0.1, 0.2}, map[string]any{"date": "2026-05-01", "kpi": "OEE"})
	require.NoError(t, err)
	assert.Equal(t, []string{"report_2026-05-01_EQP-001_OEE"}, fake.ids)

	got, err := client.Get(ctx, "report_2026-05-01_EQP-001_OEE")
	require.NoError(t, err)
	assert.Equal(t, "# 분석 리포트", got.Document)
	assert.Equal(t, "OEE", got.Metadata["kpi"])
}

func TestChromaClient_Get_NotFound(t *testing.T) {
	client, _ := setupClient(t)

	_, err := client.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, reportstore.ErrReportNotFound)
}

func TestChromaClient_GetByDate(t *testing.T) {
	client, _ := setupClient(t)
	ctx := context.Background()

	require.NoError(t, client.Add(ctx, "r1", "doc1", []float32{0.1}, map[string]any{"date": "2026-05-01"}))
	require.NoError(t, client.Add(ctx, "r2", "doc2", []float32{0.2}, map[string]any{"date": "2026-05-02"}))

	got, err := client.GetByDate(ctx, "2026-05-02")
	require.NoError(t, err)
	assert.Equal(t, "r2", got.ID)

	_, err = client.GetByDate(ctx, "2026-05-03")
	assert.ErrorIs(t, err, reportstore.ErrReportNotFound)
}

func TestChromaClient_Query(t *testing.T) {
	client, fake := setupClient(t)
	fake.queryResponse = map[string]any{
		"ids":       [][]string{{"r1", "r2"}},
		"documents": [][]string{{"doc1", "doc2"}},
		"metadatas": [][]map[string]any{{{"date": "2026-05-01"}, {"date": "2026-05-02"}}},
		"distances": [][]float64{{0.42, 1.87}},
	}

	results, err := client.Query(context.Background(), []float32{0.1, 0.2}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "r1", results[0].ID)
	assert.InDelta(t, 0.42, results[0].Distance, 1e-9)
	assert.Equal(t, "doc2", results[1].Document)
}

func TestChromaClient_Query_Empty(t *testing.T) {
	client, fake := setupClient(t)
	fake.queryResponse = map[string]any{"ids": [][]string{}}

	results, err := client.Query(context.Background(), []float32{0.1}, 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromaClient_CountAndDelete(t *testing.T) {
	client, _ := setupClient(t)
	ctx := context.Background()

	require.NoError(t, client.Add(ctx, "r1", "doc", []float32{0.1}, map[string]any{"date": "2026-05-01"}))

	n, err := client.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, client.Delete(ctx, "r1"))

	n, err = client.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChromaClient_CollectionResolvedOnce(t *testing.T) {
	client, fake := setupClient(t)
	ctx := context.Background()

	require.NoError(t, client.Add(ctx, "r1", "doc", []float32{0.1}, nil))
	require.NoError(t, client.Add(ctx, "r2", "doc", []float32{0.1}, nil))

	created := 0
	for _, r := range fake.requests {
		if r == "collections" {
			created++
		}
	}
	assert.Equal(t, 1, created)
}
