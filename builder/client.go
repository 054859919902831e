package builder

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hotshot-go/hotshot/consensus/hotshot"
	"github.com/hotshot-go/hotshot/model/chain"
)

// Paths of the builder API. Each takes the block or parent commitment, the view, the requesting
// node and its signature, all hex encoded except the view.
const (
	availableBlocksPath  = "/block_info/availableblocks"
	claimBlockPath       = "/block_info/claimblock"
	claimHeaderInputPath = "/block_info/claimheaderinput"
)

// maxResponseSize bounds the body read from a builder.
const maxResponseSize = 64 << 20

// HTTPClient talks to a builder over its HTTP API.
type HTTPClient struct {
	url    string
	client *http.Client
}

var _ hotshot.BuilderClient = (*HTTPClient)(nil)

// NewHTTPClient creates a client of the builder at baseURL. The timeout bounds each request on
// top of the request context.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		url:    strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) URL() string { return c.url }

func (c *HTTPClient) AvailableBlocks(ctx context.Context, parent chain.Commitment, view uint64, sender chain.NodeID, signature []byte) ([]hotshot.AvailableBlockInfo, error) {
	var blocks []hotshot.AvailableBlockInfo
	if err := c.get(ctx, requestPath(availableBlocksPath, parent, view, sender, signature), &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

func (c *HTTPClient) ClaimBlock(ctx context.Context, blockHash chain.Commitment, view uint64, sender chain.NodeID, signature []byte) (*hotshot.AvailableBlockData, error) {
	var block hotshot.AvailableBlockData
	if err := c.get(ctx, requestPath(claimBlockPath, blockHash, view, sender, signature), &block); err != nil {
		return nil, err
	}
	if block.Payload == nil {
		return nil, fmt.Errorf("builder %s returned block %v without payload", c.url, blockHash)
	}
	return &block, nil
}

func (c *HTTPClient) ClaimBlockHeaderInput(ctx context.Context, blockHash chain.Commitment, view uint64, sender chain.NodeID, signature []byte) (*hotshot.AvailableBlockHeaderInput, error) {
	var input hotshot.AvailableBlockHeaderInput
	if err := c.get(ctx, requestPath(claimHeaderInputPath, blockHash, view, sender, signature), &input); err != nil {
		return nil, err
	}
	return &input, nil
}

func requestPath(base string, commitment chain.Commitment, view uint64, sender chain.NodeID, signature []byte) string {
	return fmt.Sprintf("%s/%s/%d/%s/%s", base, commitment, view, sender, hex.EncodeToString(signature))
}

func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+path, nil)
	if err != nil {
		return fmt.Errorf("could not create builder request: %w", err)
	}
	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("builder %s request failed: %w", c.url, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("could not read builder %s response: %w", c.url, err)
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("builder %s responded %d: %s", c.url, res.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("could not decode builder %s response: %w", c.url, err)
	}
	return nil
}
