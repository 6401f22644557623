package identity

import (
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/docledger/middleware/pkg/auth"
	"github.com/docledger/middleware/pkg/config"
)

func issueToken(t *testing.T, key *ecdsa.PrivateKey, issuer string) string {
	t.Helper()
	now := time.Now()
	claim, err := json.Marshal(auth.Claim{
		IssuedAt:  now.Unix(),
		Expires:   now.Add(15 * time.Minute).Unix(),
		Issuer:    issuer,
		Subject:   "user-1",
		NotBefore: now.Unix(),
		TokenID:   "tid-1",
	})
	if err != nil {
		t.Fatalf("failed to marshal claim: %v", err)
	}

	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(claim), claim)
	sig, err := crypto.Sign(crypto.Keccak256Hash([]byte(prefixed)).Bytes(), key)
	if err != nil {
		t.Fatalf("failed to sign claim: %v", err)
	}

	payload, err := json.Marshal([]string{"0x" + hex.EncodeToString(sig), string(claim)})
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	return base64.StdEncoding.EncodeToString(payload)
}

func newVerifier(providerURL string) *DIDVerifier {
	return NewDIDVerifier(&config.IdentityConfig{
		Mode:           "did",
		ProviderURL:    providerURL,
		SecretKey:      "sk-test",
		RequestTimeout: 2 * time.Second,
	}, zap.NewNop())
}

func TestVerifyProducesSession(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	issuer := "did:ethr:" + address

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/admin/auth/user/get" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Secret-Key") != "sk-test" {
			t.Fatalf("missing secret key header")
		}
		if r.Header.Get("Authorization") == "" {
			t.Fatalf("missing bearer header")
		}
		_, _ = w.Write([]byte(`{"status":"ok","data":{"issuer":"` + issuer + `","public_address":"` + address + `","email":"u@example.com"}}`))
	}))
	defer srv.Close()

	session, err := newVerifier(srv.URL).Verify(context.Background(), issueToken(t, key, issuer))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Subject != issuer {
		t.Fatalf("expected subject %s, got %s", issuer, session.Subject)
	}
	if session.AccountAddress != address {
		t.Fatalf("expected account address %s, got %s", address, session.AccountAddress)
	}
}

func TestVerifyFallsBackToIssuerAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	issuer := "did:ethr:" + address

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","data":{"issuer":"` + issuer + `","public_address":"","email":""}}`))
	}))
	defer srv.Close()

	session, err := newVerifier(srv.URL).Verify(context.Background(), issueToken(t, key, issuer))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.AccountAddress != address {
		t.Fatalf("expected fallback to issuer address %s, got %s", address, session.AccountAddress)
	}
}

func TestVerifyRejectsGarbageWithoutProviderCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := newVerifier(srv.URL).Verify(context.Background(), "garbage")
	if !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if called {
		t.Fatalf("provider must not be called for an unparseable token")
	}
}

func TestVerifyProviderRejection(t *testing.T) {
	key, _ := crypto.GenerateKey()
	issuer := "did:ethr:" + crypto.PubkeyToAddress(key.PublicKey).Hex()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newVerifier(srv.URL).Verify(context.Background(), issueToken(t, key, issuer))
	if !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for provider 4xx, got %v", err)
	}
}

func TestVerifyProviderUnreachable(t *testing.T) {
	key, _ := crypto.GenerateKey()
	issuer := "did:ethr:" + crypto.PubkeyToAddress(key.PublicKey).Hex()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newVerifier(srv.URL).Verify(context.Background(), issueToken(t, key, issuer))
	if !errors.Is(err, auth.ErrProviderUnreachable) {
		t.Fatalf("expected ErrProviderUnreachable, got %v", err)
	}
}

func TestVerifyProvider5xxIsUnreachable(t *testing.T) {
	key, _ := crypto.GenerateKey()
	issuer := "did:ethr:" + crypto.PubkeyToAddress(key.PublicKey).Hex()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newVerifier(srv.URL).Verify(context.Background(), issueToken(t, key, issuer))
	if !errors.Is(err, auth.ErrProviderUnreachable) {
		t.Fatalf("expected ErrProviderUnreachable for provider 5xx, got %v", err)
	}
}
