package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"github.com/docledger/middleware/pkg/config"
)

// addPath is the IPFS node's add endpoint. The node derives the content
// address from the bytes, so identical uploads yield identical addresses.
const addPath = "/api/v0/add"

// addResponse is the node's reply to a successful add.
type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// IPFSClient stores blobs on an IPFS node over its HTTP API.
type IPFSClient struct {
	nodeURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewIPFSClient creates a content store client for the configured IPFS node.
func NewIPFSClient(cfg *config.StorageConfig, logger *zap.Logger) *IPFSClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &IPFSClient{
		nodeURL: cfg.NodeURL,
		http: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Put pins data to the node and returns its content address.
//
// The returned address is validated as a well-formed CID before being
// trusted; a node returning garbage is reported as ErrRejected, not passed
// through to the ledger.
func (c *IPFSClient) Put(ctx context.Context, data []byte) (string, error) {
	endpoint, err := url.JoinPath(c.nodeURL, addPath)
	if err != nil {
		return "", fmt.Errorf("invalid node url: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "blob")
	if err != nil {
		return "", fmt.Errorf("failed to build upload body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to build upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?pin=true", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: node returned status %d", ErrRejected, resp.StatusCode)
	}

	var added addResponse
	if err := json.NewDecoder(resp.Body).Decode(&added); err != nil {
		return "", fmt.Errorf("%w: malformed node response: %v", ErrRejected, err)
	}

	id, err := cid.Decode(added.Hash)
	if err != nil {
		return "", fmt.Errorf("%w: node returned invalid content address %q: %v", ErrRejected, added.Hash, err)
	}

	c.logger.Debug("Content pinned",
		zap.String("content_address", id.String()),
		zap.Int("bytes", len(data)))

	return id.String(), nil
}

func classifyTransportError(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
