package identity

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/docledger/middleware/pkg/auth"
	"github.com/docledger/middleware/pkg/config"
)

// DIDVerifier validates DID bearer tokens: the token's EIP-191 proof is
// checked locally (the proof is self-certifying), then the provider's admin
// API supplies the user's wallet address.
type DIDVerifier struct {
	client *Client
	logger *zap.Logger
}

// NewDIDVerifier creates a credential verifier for DID tokens.
func NewDIDVerifier(cfg *config.IdentityConfig, logger *zap.Logger) *DIDVerifier {
	return &DIDVerifier{
		client: NewClient(cfg, logger),
		logger: logger,
	}
}

// Verify implements auth.Verifier.
func (v *DIDVerifier) Verify(ctx context.Context, token string) (*auth.Session, error) {
	parsed, err := auth.ParseDIDToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}
	if err := parsed.Validate(time.Now()); err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}

	meta, err := v.client.MetadataByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	// The provider is authoritative for the wallet address; fall back to the
	// address embedded in the issuer DID when it omits one.
	address := meta.PublicAddress
	if address == "" {
		address, err = parsed.IssuerAddress()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
		}
	}
	if !auth.ValidateAddress(address) {
		return nil, fmt.Errorf("%w: provider returned invalid address %q", auth.ErrInvalidToken, address)
	}

	return &auth.Session{
		Subject:        parsed.Claim.Issuer,
		AccountAddress: auth.NormalizeAddress(address),
	}, nil
}
