// Package identity wraps the identity provider's admin API.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/docledger/middleware/pkg/auth"
	"github.com/docledger/middleware/pkg/config"
)

// metadataPath is the provider's token-to-user metadata lookup endpoint.
const metadataPath = "/v1/admin/auth/user/get"

// Metadata is the provider's record for an authenticated user.
type Metadata struct {
	Issuer        string `json:"issuer"`
	PublicAddress string `json:"public_address"`
	Email         string `json:"email"`
}

type metadataResponse struct {
	Status string   `json:"status"`
	Data   Metadata `json:"data"`
}

// Client is an HTTP client for the identity provider's admin API,
// authenticated with the process-wide secret key.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
	logger    *zap.Logger
}

// NewClient creates a new identity provider client
func NewClient(cfg *config.IdentityConfig, logger *zap.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   cfg.ProviderURL,
		secretKey: cfg.SecretKey,
		http: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// MetadataByToken looks up user metadata for a validated bearer token.
//
// Network failures are reported as auth.ErrProviderUnreachable; a 4xx from
// the provider means the token is not recognized (auth.ErrInvalidToken).
func (c *Client) MetadataByToken(ctx context.Context, token string) (*Metadata, error) {
	endpoint, err := url.JoinPath(c.baseURL, metadataPath)
	if err != nil {
		return nil, fmt.Errorf("invalid provider url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Secret-Key", c.secretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w: provider rejected token (status %d)", auth.ErrInvalidToken, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: provider returned status %d", auth.ErrProviderUnreachable, resp.StatusCode)
	}

	var body metadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: malformed provider response: %v", auth.ErrProviderUnreachable, err)
	}

	return &body.Data, nil
}
