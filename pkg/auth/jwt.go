package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier validates RS256 bearer tokens against a JWKS endpoint and
// produces a Session from the configured claims. Used when the identity
// provider issues standard JWTs instead of DID tokens.
type JWTVerifier struct {
	jwksURL      string
	issuer       string
	addressClaim string
	keys         map[string]*rsa.PublicKey
	keysMu       sync.RWMutex
	client       *http.Client
}

// jwks represents a JSON Web Key Set
type jwks struct {
	Keys []jwk `json:"keys"`
}

// jwk represents a JSON Web Key
type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// NewJWTVerifier creates a JWKS-backed credential verifier.
func NewJWTVerifier(jwksURL, issuer, addressClaim string, timeout time.Duration) *JWTVerifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &JWTVerifier{
		jwksURL:      jwksURL,
		issuer:       issuer,
		addressClaim: addressClaim,
		keys:         make(map[string]*rsa.PublicKey),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (*Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("missing kid in token header")
		}

		return v.getKey(ctx, kid)
	})
	if err != nil {
		// A key-fetch failure is a provider problem, not a token problem.
		if fetchFailed(err) {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("%w: token rejected", ErrInvalidToken)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims type", ErrInvalidToken)
	}

	if v.issuer != "" {
		iss, ok := claims["iss"].(string)
		if !ok || iss != v.issuer {
			return nil, fmt.Errorf("%w: invalid issuer", ErrInvalidToken)
		}
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}

	addr, ok := claims[v.addressClaim].(string)
	if !ok || !ValidateAddress(addr) {
		return nil, fmt.Errorf("%w: missing or invalid %s claim", ErrInvalidToken, v.addressClaim)
	}

	return &Session{
		Subject:        sub,
		AccountAddress: NormalizeAddress(addr),
	}, nil
}

// errKeyFetch marks errors from the JWKS refresh path so Verify can classify
// them as provider failures.
type errKeyFetch struct{ err error }

func (e *errKeyFetch) Error() string { return e.err.Error() }
func (e *errKeyFetch) Unwrap() error { return e.err }

func fetchFailed(err error) bool {
	var fe *errKeyFetch
	return errors.As(err, &fe)
}

// getKey retrieves a key by ID, refreshing from JWKS if needed
func (v *JWTVerifier) getKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.keysMu.RLock()
	key, exists := v.keys[kid]
	v.keysMu.RUnlock()

	if exists {
		return key, nil
	}

	if err := v.refreshKeys(ctx); err != nil {
		return nil, &errKeyFetch{err: err}
	}

	v.keysMu.RLock()
	key, exists = v.keys[kid]
	v.keysMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("key not found: %s", kid)
	}

	return key, nil
}

// refreshKeys fetches and parses the JWKS
func (v *JWTVerifier) refreshKeys(ctx context.Context) error {
	if v.jwksURL == "" {
		return fmt.Errorf("JWKS URL not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var set jwks
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("failed to decode JWKS: %w", err)
	}

	v.keysMu.Lock()
	defer v.keysMu.Unlock()

	for _, key := range set.Keys {
		if key.Kty == "RSA" {
			pubKey, err := parseRSAPublicKey(key.N, key.E)
			if err != nil {
				continue // Skip invalid keys
			}
			v.keys[key.Kid] = pubKey
		}
	}

	return nil
}

// parseRSAPublicKey parses RSA public key components from base64url-encoded strings
func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := int(new(big.Int).SetBytes(eBytes).Int64())

	return &rsa.PublicKey{N: n, E: e}, nil
}
