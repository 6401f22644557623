package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

type verifierFunc func(ctx context.Context, token string) (*Session, error)

func (f verifierFunc) Verify(ctx context.Context, token string) (*Session, error) {
	return f(ctx, token)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"valid", "Bearer abc123", "abc123", true},
		{"missing header", "", "", false},
		{"empty token", "Bearer ", "", false},
		{"lowercase prefix", "bearer abc123", "", false},
		{"no prefix", "abc123", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			token, err := BearerToken(r)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if token != tt.want {
					t.Fatalf("expected token %q, got %q", tt.want, token)
				}
				return
			}
			if err != ErrMissingCredential {
				t.Fatalf("expected ErrMissingCredential, got %v", err)
			}
		})
	}
}

func TestMiddlewareInjectsSession(t *testing.T) {
	want := &Session{
		Subject:        "did:ethr:0x1111111111111111111111111111111111111111",
		AccountAddress: "0x1111111111111111111111111111111111111111",
	}
	verifier := verifierFunc(func(ctx context.Context, token string) (*Session, error) {
		if token != "good" {
			return nil, ErrInvalidToken
		}
		return want, nil
	})

	var got *Session
	handler := Middleware(verifier, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got != want {
		t.Fatalf("expected session in context, got %+v", got)
	}
}

func TestMiddlewareUniformUnauthorizedResponse(t *testing.T) {
	// Every failure kind must produce the same external response.
	verifiers := map[string]Verifier{
		"invalid token":        verifierFunc(func(context.Context, string) (*Session, error) { return nil, ErrInvalidToken }),
		"provider unreachable": verifierFunc(func(context.Context, string) (*Session, error) { return nil, ErrProviderUnreachable }),
	}

	for name, verifier := range verifiers {
		t.Run(name, func(t *testing.T) {
			handler := Middleware(verifier, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("handler must not run on auth failure")
			}))

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", "Bearer whatever")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, r)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}
