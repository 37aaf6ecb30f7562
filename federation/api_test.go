package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/okanezen/newshub/federation/internal/store"
)

func newTestAPI(t *testing.T, svc *Service) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Mount("/api", svc.Routes())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, userID string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func TestAPIMissingUser(t *testing.T) {
	svc := newTestService(t, fakeSearXNG(t, 1).URL, nil)
	srv := newTestAPI(t, svc)

	resp, _ := call(t, srv, http.MethodPost, "/api/search/federated", "",
		SearchRequest{Query: "golang"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAPISearchAndIngestFlow(t *testing.T) {
	svc := newTestService(t, fakeSearXNG(t, 2).URL, nil)
	srv := newTestAPI(t, svc)

	resp, body := call(t, srv, http.MethodPost, "/api/search/federated", "u1",
		SearchRequest{Query: "golang"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d: %s", resp.StatusCode, body)
	}
	var search SearchResponse
	if err := json.Unmarshal(body, &search); err != nil {
		t.Fatal(err)
	}
	if search.SessionID == "" || len(search.Results) != 2 {
		t.Fatalf("search response %+v", search)
	}

	resp, body = call(t, srv, http.MethodPost, "/api/ingest/jobs", "u1",
		IngestRequest{SessionID: search.SessionID})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("queue status = %d: %s", resp.StatusCode, body)
	}
	var receipt IngestReceipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		t.Fatal(err)
	}
	if receipt.JobID == "" || receipt.QueuedCount != 2 {
		t.Fatalf("receipt %+v", receipt)
	}

	svc.governor.DrainPending(context.Background())

	resp, body = call(t, srv, http.MethodGet, "/api/ingest/jobs/"+receipt.JobID, "u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("job status = %d: %s", resp.StatusCode, body)
	}
	var job IngestJob
	if err := json.Unmarshal(body, &job); err != nil {
		t.Fatal(err)
	}
	if job.Status != store.StatusCompleted || job.StoredItems != 2 {
		t.Fatalf("job %+v", job)
	}

	// Other users get 404 for the same job.
	resp, _ = call(t, srv, http.MethodGet, "/api/ingest/jobs/"+receipt.JobID, "u2", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-user job status = %d, want 404", resp.StatusCode)
	}

	resp, body = call(t, srv, http.MethodGet, "/api/sources", "u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sources status = %d", resp.StatusCode)
	}
	var sources struct {
		Sources []VirtualSource `json:"sources"`
	}
	if err := json.Unmarshal(body, &sources); err != nil {
		t.Fatal(err)
	}
	if len(sources.Sources) != 1 || sources.Sources[0].ItemCount != 2 {
		t.Fatalf("sources %+v", sources)
	}
}

func TestAPIValidationErrors(t *testing.T) {
	svc := newTestService(t, fakeSearXNG(t, 1).URL, nil)
	srv := newTestAPI(t, svc)

	resp, _ := call(t, srv, http.MethodPost, "/api/ingest/jobs", "u1",
		IngestRequest{SessionID: "missing"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown session status = %d, want 404", resp.StatusCode)
	}

	resp, _ = call(t, srv, http.MethodPost, "/api/search/federated", "u1",
		SearchRequest{Query: ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank query status = %d, want 400", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/search/federated",
		bytes.NewBufferString("{not json"))
	req.Header.Set("X-User-ID", "u1")
	raw, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	raw.Body.Close()
	if raw.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", raw.StatusCode)
	}
}

func TestAPIProviderEndpoints(t *testing.T) {
	svc := newTestService(t, fakeSearXNG(t, 1).URL, nil)
	srv := newTestAPI(t, svc)

	resp, body := call(t, srv, http.MethodGet, "/api/search/providers", "u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("providers status = %d", resp.StatusCode)
	}
	var opts struct {
		Providers []ProviderOptions `json:"providers"`
	}
	if err := json.Unmarshal(body, &opts); err != nil {
		t.Fatal(err)
	}
	if len(opts.Providers) != 2 {
		t.Fatalf("providers %+v", opts)
	}

	resp, _ = call(t, srv, http.MethodGet, "/api/search/providers/status", "u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status endpoint = %d", resp.StatusCode)
	}
}
