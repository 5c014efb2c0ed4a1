package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeCoverStore keeps cover objects in memory.
type fakeCoverStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeCoverStore() *fakeCoverStore {
	return &fakeCoverStore{objects: map[string][]byte{}}
}

func (f *fakeCoverStore) PutCover(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeCoverStore) CoverURL(_ context.Context, key string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[key]; !ok {
		return "", fmt.Errorf("no object at key %s", key)
	}
	return "https://covers.test/" + key, nil
}

func (f *fakeCoverStore) DeleteCover(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

// putCover sends a multipart PUT to the cover endpoint.
func putCover(t *testing.T, ts *httptest.Server, token, bookID, contentType string, payload []byte) (int, testEnvelope) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="cover"; filename="cover.png"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/books/"+bookID+"/cover", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put cover: %v", err)
	}
	defer resp.Body.Close()
	var env testEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, env
}

func TestCoverUploadAndFetch(t *testing.T) {
	covers := newFakeCoverStore()
	ts := newTestServerWithCovers(t, Options{}, covers)
	owner := signupUser(t, ts, "paul_atreides", "paul@arrakis.example")
	bookID := createBook(t, ts, owner, "Dune", "Frank Herbert")

	code, env := putCover(t, ts, owner, bookID, "image/png", []byte("png bytes"))
	if code != http.StatusOK || env.Status != "success" {
		t.Fatalf("upload: status %d, %+v", code, env)
	}

	code, env = doJSON(t, http.MethodGet, ts.URL+"/api/books/"+bookID+"/cover", "", nil)
	if code != http.StatusOK {
		t.Fatalf("fetch cover: status %d, %+v", code, env)
	}
	var data struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode cover url: %v", err)
	}
	if !strings.Contains(data.URL, "covers/"+bookID) {
		t.Fatalf("url %q should reference the book's cover key", data.URL)
	}
}

func TestCoverUploadOwnerGated(t *testing.T) {
	ts := newTestServerWithCovers(t, Options{}, newFakeCoverStore())
	owner := signupUser(t, ts, "paul_atreides", "paul@arrakis.example")
	other := signupUser(t, ts, "baron_harkonnen", "baron@giedi.example")
	bookID := createBook(t, ts, owner, "Dune", "Frank Herbert")

	if code, _ := putCover(t, ts, other, bookID, "image/png", []byte("png bytes")); code != http.StatusForbidden {
		t.Fatalf("foreign upload: status %d, want 403", code)
	}
}

func TestCoverUploadRejectsNonImage(t *testing.T) {
	ts := newTestServerWithCovers(t, Options{}, newFakeCoverStore())
	owner := signupUser(t, ts, "paul_atreides", "paul@arrakis.example")
	bookID := createBook(t, ts, owner, "Dune", "Frank Herbert")

	if code, _ := putCover(t, ts, owner, bookID, "text/plain", []byte("not an image")); code != http.StatusBadRequest {
		t.Fatalf("non-image upload: status %d, want 400", code)
	}
}

func TestCoverUploadRejectsOversize(t *testing.T) {
	ts := newTestServerWithCovers(t, Options{MaxCoverBytes: 1024}, newFakeCoverStore())
	owner := signupUser(t, ts, "paul_atreides", "paul@arrakis.example")
	bookID := createBook(t, ts, owner, "Dune", "Frank Herbert")

	if code, _ := putCover(t, ts, owner, bookID, "image/png", bytes.Repeat([]byte("x"), 2048)); code != http.StatusBadRequest {
		t.Fatalf("oversize upload: status %d, want 400", code)
	}
}

func TestCoverFetchBeforeUpload(t *testing.T) {
	ts := newTestServerWithCovers(t, Options{}, newFakeCoverStore())
	owner := signupUser(t, ts, "paul_atreides", "paul@arrakis.example")
	bookID := createBook(t, ts, owner, "Dune", "Frank Herbert")

	if code, _ := doJSON(t, http.MethodGet, ts.URL+"/api/books/"+bookID+"/cover", "", nil); code != http.StatusNotFound {
		t.Fatalf("cover before upload: status %d, want 404", code)
	}
}

func TestCoverEndpointsWithoutStoreConfigured(t *testing.T) {
	ts := newTestServer(t, Options{})
	owner := signupUser(t, ts, "paul_atreides", "paul@arrakis.example")
	bookID := createBook(t, ts, owner, "Dune", "Frank Herbert")

	if code, _ := putCover(t, ts, owner, bookID, "image/png", []byte("png bytes")); code != http.StatusServiceUnavailable {
		t.Fatalf("upload without store: status %d, want 503", code)
	}
	if code, _ := doJSON(t, http.MethodGet, ts.URL+"/api/books/"+bookID+"/cover", "", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("fetch without store: status %d, want 503", code)
	}
}
