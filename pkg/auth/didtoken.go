package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// clockSkewLeeway tolerates minor clock drift between the token issuer and
// this service when checking nbf/ext.
const clockSkewLeeway = 5 * time.Minute

// didPrefix is the issuer scheme used by DID tokens: "did:ethr:<address>".
const didPrefix = "did:ethr:"

// Claim is the decoded claim portion of a DID token.
type Claim struct {
	IssuedAt  int64  `json:"iat"`
	Expires   int64  `json:"ext"`
	Issuer    string `json:"iss"`
	Subject   string `json:"sub"`
	Audience  string `json:"aud"`
	NotBefore int64  `json:"nbf"`
	TokenID   string `json:"tid"`
}

// DIDToken is a decoded bearer credential: a base64-encoded JSON pair
// [proof, claim], where proof is an EIP-191 personal_sign signature by the
// issuer's wallet over the serialized claim.
type DIDToken struct {
	Proof    string
	Claim    Claim
	rawClaim string
}

// ParseDIDToken decodes a DID token without validating it.
func ParseDIDToken(token string) (*DIDToken, error) {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		// Some issuers use the URL-safe alphabet.
		decoded, err = base64.URLEncoding.DecodeString(token)
		if err != nil {
			return nil, fmt.Errorf("invalid token encoding: %w", err)
		}
	}

	var parts []string
	if err := json.Unmarshal(decoded, &parts); err != nil {
		return nil, fmt.Errorf("malformed token payload: %w", err)
	}
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed token payload: expected [proof, claim], got %d elements", len(parts))
	}

	t := &DIDToken{
		Proof:    parts[0],
		rawClaim: parts[1],
	}
	if err := json.Unmarshal([]byte(parts[1]), &t.Claim); err != nil {
		return nil, fmt.Errorf("malformed claim: %w", err)
	}
	return t, nil
}

// Validate checks the token's proof and time window.
//
// The proof must recover to the wallet address embedded in the issuer DID,
// which proves the bearer controls that wallet.
func (t *DIDToken) Validate(now time.Time) error {
	addr, err := t.IssuerAddress()
	if err != nil {
		return err
	}

	recovered, err := VerifyEIP191Signature(t.rawClaim, t.Proof)
	if err != nil {
		return fmt.Errorf("invalid proof: %w", err)
	}
	if NormalizeAddress(recovered.Hex()) != addr {
		return fmt.Errorf("proof signer does not match issuer")
	}

	if t.Claim.Expires > 0 && now.After(time.Unix(t.Claim.Expires, 0).Add(clockSkewLeeway)) {
		return fmt.Errorf("token expired")
	}
	if t.Claim.NotBefore > 0 && now.Before(time.Unix(t.Claim.NotBefore, 0).Add(-clockSkewLeeway)) {
		return fmt.Errorf("token not yet valid")
	}
	return nil
}

// IssuerAddress extracts the checksummed wallet address from the issuer DID.
func (t *DIDToken) IssuerAddress() (string, error) {
	if !strings.HasPrefix(t.Claim.Issuer, didPrefix) {
		return "", fmt.Errorf("unsupported issuer format: %q", t.Claim.Issuer)
	}
	addr := strings.TrimPrefix(t.Claim.Issuer, didPrefix)
	if !ValidateAddress(addr) {
		return "", fmt.Errorf("invalid issuer address: %q", addr)
	}
	return NormalizeAddress(addr), nil
}
