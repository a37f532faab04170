package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// mockS3 records object uploads and ACL grants.
type mockS3 struct {
	mu      sync.Mutex
	objects map[string]string
	acls    map[string]string
	denyACL bool
}

func (m *mockS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.Method != http.MethodPut {
		http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
		return
	}

	if _, ok := r.URL.Query()["acl"]; ok {
		if m.denyACL {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
			return
		}
		m.acls[r.URL.Path] = r.Header.Get("x-amz-acl")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m.objects[r.URL.Path] = string(body)
	w.WriteHeader(http.StatusOK)
}

func newMockS3(t *testing.T) (*mockS3, *httptest.Server) {
	t.Helper()
	m := &mockS3{objects: map[string]string{}, acls: map[string]string{}}
	server := httptest.NewServer(m)
	t.Cleanup(server.Close)
	return m, server
}

func newTestPublisher(t *testing.T, endpoint string) *S3Publisher {
	t.Helper()
	p, err := NewS3Publisher(context.Background(), S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
		Folder:          "dubbed",
	})
	if err != nil {
		t.Fatalf("NewS3Publisher() error = %v", err)
	}
	return p
}

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "final.mp4")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestNewS3Publisher(t *testing.T) {
	p := newTestPublisher(t, "http://localhost:4566")

	if p.bucket != "test-bucket" {
		t.Errorf("bucket = %v, want %v", p.bucket, "test-bucket")
	}
	if p.region != "us-east-1" {
		t.Errorf("region = %v, want %v", p.region, "us-east-1")
	}
}

func TestNewS3Publisher_RequiresBucket(t *testing.T) {
	_, err := NewS3Publisher(context.Background(), S3Config{Region: "us-east-1"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestS3Publisher_Publish_MockServer(t *testing.T) {
	m, server := newMockS3(t)
	p := newTestPublisher(t, server.URL)

	link, err := p.Publish(context.Background(), writeArtifact(t, "dubbed video"), "abc_final.mp4")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	wantLink := server.URL + "/test-bucket/dubbed/abc_final.mp4"
	if link != wantLink {
		t.Errorf("link = %v, want %v", link, wantLink)
	}
	if got := m.objects["/test-bucket/dubbed/abc_final.mp4"]; got != "dubbed video" {
		t.Errorf("uploaded body = %q, want %q", got, "dubbed video")
	}
	if got := m.acls["/test-bucket/dubbed/abc_final.mp4"]; got != "public-read" {
		t.Errorf("acl = %q, want public-read", got)
	}
}

func TestS3Publisher_Publish_PermissionGrantFails(t *testing.T) {
	m, server := newMockS3(t)
	m.denyACL = true
	p := newTestPublisher(t, server.URL)

	link, err := p.Publish(context.Background(), writeArtifact(t, "dubbed video"), "abc_final.mp4")
	if err == nil {
		t.Fatal("expected error when ACL grant fails")
	}
	if !errors.Is(err, ErrPermissionGrant) {
		t.Errorf("expected ErrPermissionGrant, got %v", err)
	}

	var partial *PartialPublishError
	if !errors.As(err, &partial) {
		t.Fatalf("expected *PartialPublishError, got %T", err)
	}
	if partial.Link == "" || partial.Link != link {
		t.Errorf("partial link = %q, returned link = %q", partial.Link, link)
	}
	if _, ok := m.objects["/test-bucket/dubbed/abc_final.mp4"]; !ok {
		t.Error("object should have been uploaded before the ACL call")
	}
}

func TestS3Publisher_Publish_UploadFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<Error><Code>AccessDenied</Code><Message>no</Message></Error>`)
	}))
	defer server.Close()

	_, err := newTestPublisher(t, server.URL).Publish(context.Background(), writeArtifact(t, "x"), "final.mp4")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrPermissionGrant) {
		t.Error("a failed upload is not a partial publish")
	}
	if !strings.Contains(err.Error(), "upload to S3") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestS3Publisher_Publish_InvalidName(t *testing.T) {
	p := newTestPublisher(t, "http://localhost:4566")

	for _, name := range []string{"", "..", "a/b.mp4", `a\b.mp4`} {
		if _, err := p.Publish(context.Background(), "unused", name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("name %q: expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestS3Publisher_ObjectURL(t *testing.T) {
	p := &S3Publisher{bucket: "b", region: "eu-west-1"}
	if got := p.objectURL("dubbed/a b.mp4"); got != "https://b.s3.eu-west-1.amazonaws.com/dubbed/a%20b.mp4" {
		t.Errorf("unexpected url: %s", got)
	}
}
