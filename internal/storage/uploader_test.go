package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewBucketUploaderValidatesOptions(t *testing.T) {
	t.Parallel()

	if _, err := NewBucketUploader(BucketOptions{Bucket: "b"}); err == nil {
		t.Fatalf("expected error when endpoint is missing")
	}
	if _, err := NewBucketUploader(BucketOptions{Endpoint: "https://example.com"}); err == nil {
		t.Fatalf("expected error when bucket is missing")
	}
}

func TestUploadPutsObjectAndReturnsURL(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	uploader, err := NewBucketUploader(BucketOptions{
		Endpoint: server.URL,
		Bucket:   "podverse-data",
		Token:    "secret",
	})
	if err != nil {
		t.Fatalf("NewBucketUploader returned error: %v", err)
	}

	url, err := uploader.Upload(context.Background(), "show/transcript/ep.txt", []byte("transcript text"))
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	want := server.URL + "/podverse-data/show/transcript/ep.txt"
	if url != want {
		t.Fatalf("expected URL %q, got %q", want, url)
	}
	if gotPath != "/podverse-data/show/transcript/ep.txt" {
		t.Fatalf("unexpected request path %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected authorization %q", gotAuth)
	}
	if gotBody != "transcript text" {
		t.Fatalf("unexpected body %q", gotBody)
	}
}

func TestUploadSurfacesServiceError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "access denied", http.StatusForbidden)
	}))
	defer server.Close()

	uploader, err := NewBucketUploader(BucketOptions{Endpoint: server.URL, Bucket: "b"})
	if err != nil {
		t.Fatalf("NewBucketUploader returned error: %v", err)
	}

	if _, err := uploader.Upload(context.Background(), "x.txt", []byte("x")); err == nil {
		t.Fatalf("expected error for rejected upload")
	}
}

func TestUploadRejectsEmptyObjectPath(t *testing.T) {
	t.Parallel()

	uploader, err := NewBucketUploader(BucketOptions{Endpoint: "https://example.com", Bucket: "b"})
	if err != nil {
		t.Fatalf("NewBucketUploader returned error: %v", err)
	}

	if _, err := uploader.Upload(context.Background(), "  ", []byte("x")); err == nil {
		t.Fatalf("expected error for empty object path")
	}
}
