package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docrag/config"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/extract"
	"docrag/internal/adapter/memstore"
	"docrag/internal/usecase"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := memstore.NewMemoryStore()
	m, err := usecase.Open(usecase.Deps{
		Store:     store,
		Persister: store,
		Extractor: extract.NewTextExtractor([]string{"**/*.txt", "**/*.md"}),
		Chunker:   chunker.NewRecursiveChunker(200, 20),
		Embedder:  embedding.NewHashEmbedder(64),
	}, usecase.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return NewServer(m, config.ServerConfig{Addr: ":0", BodyLimitMB: 1}, nil)
}

func doRequest(t *testing.T, s *Server, req *http.Request, out any) int {
	t.Helper()
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("decode %s: %v", body, err)
		}
	}
	return resp.StatusCode
}

func uploadRequest(t *testing.T, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte(content))
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func queryRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestQueryNothingIndexed(t *testing.T) {
	s := newTestServer(t)

	var resp QueryResponse
	if code := doRequest(t, s, queryRequest(`{"query":"anything"}`), &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !resp.NothingIndexed || resp.Message == "" {
		t.Errorf("expected nothing-indexed response, got %+v", resp)
	}
}

func TestQueryValidation(t *testing.T) {
	s := newTestServer(t)

	var valErr ValidationError
	if code := doRequest(t, s, queryRequest(`{"query":""}`), &valErr); code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", code)
	}
	if _, ok := valErr.Errors["Query"]; !ok {
		t.Errorf("expected error on Query, got %+v", valErr)
	}

	if code := doRequest(t, s, queryRequest(`{"query":"x","k":0.5`), nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed JSON, got %d", code)
	}
	if code := doRequest(t, s, queryRequest(`{"query":"   "}`), nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank query, got %d", code)
	}
}

func TestUploadQueryDelete(t *testing.T) {
	s := newTestServer(t)

	var up UploadResponse
	code := doRequest(t, s, uploadRequest(t, map[string]string{
		"alpha.txt": strings.Repeat("alpha notes about retrieval. ", 30),
		"paper.pdf": "%PDF-1.4",
	}), &up)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if up.Message != "1 of 2 documents indexed" || len(up.Errors) != 1 {
		t.Errorf("unexpected upload response %+v", up)
	}

	var docs DocumentsResponse
	doRequest(t, s, httptest.NewRequest(http.MethodGet, "/documents", nil), &docs)
	if len(docs.Documents) != 1 || docs.Documents[0].ID != "alpha.txt" {
		t.Fatalf("unexpected documents %+v", docs)
	}

	var q QueryResponse
	doRequest(t, s, queryRequest(`{"query":"retrieval","k":2}`), &q)
	if q.NothingIndexed || len(q.Results) != 2 {
		t.Errorf("expected 2 results, got %+v", q)
	}

	if code := doRequest(t, s, httptest.NewRequest(http.MethodDelete, "/documents/alpha.txt", nil), nil); code != http.StatusOK {
		t.Errorf("expected 200 on delete, got %d", code)
	}
	var apiErr Error
	if code := doRequest(t, s, httptest.NewRequest(http.MethodDelete, "/documents/alpha.txt", nil), &apiErr); code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d (%+v)", code, apiErr)
	}

	q = QueryResponse{}
	doRequest(t, s, queryRequest(`{"query":"retrieval"}`), &q)
	if !q.NothingIndexed {
		t.Error("expected nothing-indexed after deleting the only document")
	}
}

func TestDeleteByUploadedName(t *testing.T) {
	s := newTestServer(t)

	var up UploadResponse
	doRequest(t, s, uploadRequest(t, map[string]string{
		"my file.txt": strings.Repeat("notes about deleting by name. ", 20),
	}), &up)
	if len(up.Results) != 1 || up.Results[0].DocID != "my_file.txt" {
		t.Fatalf("unexpected upload response %+v", up)
	}

	var body map[string]string
	if code := doRequest(t, s, httptest.NewRequest(http.MethodDelete, "/documents/my%20file.txt", nil), &body); code != http.StatusOK {
		t.Fatalf("expected 200 deleting by the uploaded name, got %d", code)
	}

	var docs DocumentsResponse
	doRequest(t, s, httptest.NewRequest(http.MethodGet, "/documents", nil), &docs)
	if len(docs.Documents) != 0 {
		t.Errorf("expected empty corpus, got %+v", docs.Documents)
	}
}

func TestUploadWithoutFiles(t *testing.T) {
	s := newTestServer(t)
	if code := doRequest(t, s, uploadRequest(t, nil), nil); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHealthy(t *testing.T) {
	s := newTestServer(t)
	var body map[string]any
	if code := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/check/healthy", nil), &body); code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	if body["result"] != "ok" {
		t.Errorf("unexpected body %v", body)
	}
}
