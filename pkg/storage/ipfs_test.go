package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/docledger/middleware/pkg/config"
)

// A well-formed CIDv0 for fake node responses.
const testCID = "QmUNLLsPACCz1vLxQVkXqqLX5R1X345qqfHbsf67hvA3Nn"

func newTestClient(nodeURL string, timeout time.Duration) *IPFSClient {
	return NewIPFSClient(&config.StorageConfig{
		NodeURL:        nodeURL,
		RequestTimeout: timeout,
	}, zap.NewNop())
}

func TestPutReturnsContentAddress(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("expected multipart body: %v", err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("expected file part: %v", err)
		}
		defer file.Close()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Name":"blob","Hash":"` + testCID + `","Size":"5"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5*time.Second)
	addr, err := client.Put(context.Background(), []byte("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != testCID {
		t.Fatalf("expected %s, got %s", testCID, addr)
	}
	if gotPath != "/api/v0/add" {
		t.Fatalf("unexpected endpoint path %s", gotPath)
	}
}

func TestPutRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5*time.Second)
	_, err := client.Put(context.Background(), []byte("hello"))
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestPutRejectsInvalidContentAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Name":"blob","Hash":"not-a-cid","Size":"5"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5*time.Second)
	_, err := client.Put(context.Background(), []byte("hello"))
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected for invalid CID, got %v", err)
	}
}

func TestPutUnreachableNode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	client := newTestClient(srv.URL, 5*time.Second)
	_, err := client.Put(context.Background(), []byte("hello"))
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestPutTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer func() {
		close(block)
		srv.Close()
	}()

	client := newTestClient(srv.URL, 50*time.Millisecond)
	_, err := client.Put(context.Background(), []byte("hello"))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}
