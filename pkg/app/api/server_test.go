package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/docledger/middleware/pkg/auth"
	"github.com/docledger/middleware/pkg/config"
	"github.com/docledger/middleware/pkg/document"
)

type stubVerifier struct{}

func (stubVerifier) Verify(ctx context.Context, token string) (*auth.Session, error) {
	if token == "good-token" {
		return &auth.Session{
			Subject:        "did:ethr:0x1111111111111111111111111111111111111111",
			AccountAddress: "0x1111111111111111111111111111111111111111",
		}, nil
	}
	return nil, auth.ErrInvalidToken
}

type stubService struct{}

func (stubService) Upload(context.Context, *auth.Session, *document.UploadRequest) (*document.UploadResult, error) {
	return &document.UploadResult{}, nil
}
func (stubService) IncrementAllowedUploads(context.Context, *document.IncrementRequest) (*document.TxResult, error) {
	return &document.TxResult{}, nil
}
func (stubService) DeleteDocument(context.Context, *document.DeleteRequest) (*document.TxResult, error) {
	return &document.TxResult{}, nil
}
func (stubService) AllDocuments(context.Context, string) (interface{}, error)          { return nil, nil }
func (stubService) UploadedDocumentCount(context.Context, string) (interface{}, error) { return nil, nil }
func (stubService) AllowedUploads(context.Context, string) (interface{}, error)        { return nil, nil }

func testRouter(t *testing.T, monitoring bool) http.Handler {
	t.Helper()
	srv := NewServer(&config.Config{
		Server: config.ServerConfig{
			WriteTimeout:   30 * time.Second,
			MaxUploadBytes: 1 << 20,
		},
		Monitoring: config.MonitoringConfig{Enabled: monitoring},
	})
	return srv.setupRouter(stubVerifier{}, stubService{}, zap.NewNop())
}

func TestHealthEndpoint(t *testing.T) {
	router := testRouter(t, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestMetricsEndpointTogglesWithConfig(t *testing.T) {
	enabled := testRouter(t, true)
	rec := httptest.NewRecorder()
	enabled.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with monitoring enabled, got %d", rec.Code)
	}

	disabled := testRouter(t, false)
	rec = httptest.NewRecorder()
	disabled.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with monitoring disabled, got %d", rec.Code)
	}
}

func TestLoginValidatesCredential(t *testing.T) {
	router := testRouter(t, false)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credential, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDocumentRoutesAreGated(t *testing.T) {
	router := testRouter(t, false)

	req := httptest.NewRequest(http.MethodGet, "/getAllDocuments?userAddress=0x1111111111111111111111111111111111111111", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credential, got %d", rec.Code)
	}
}
