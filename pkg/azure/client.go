package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/menta2k/vision-lens/pkg/client"
	"github.com/menta2k/vision-lens/pkg/types"
)

// ErrMissingBaseURL is returned when no analysis endpoint is configured
var ErrMissingBaseURL = fmt.Errorf("%w: missing VISION_API_URL", client.ErrConfig)

// Client posts image URLs to the vision analysis endpoint
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an analysis client. A leading "@" on the base URL is
// dropped, matching how the value is usually pasted into env files.
// A nil httpClient uses http.DefaultClient, which has no timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimSuffix(strings.TrimPrefix(baseURL, "@"), "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the normalized endpoint base
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Analyze sends the request and returns the parsed response
func (c *Client) Analyze(ctx context.Context, in types.AnalyzeImageRequest) (*types.AnalyzeImageResponse, error) {
	if c.baseURL == "" {
		return nil, ErrMissingBaseURL
	}

	respBody, err := c.sendRequest(ctx, "/", in)
	if err != nil {
		return nil, err
	}

	var out types.AnalyzeImageResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", client.ErrTransport, err)
	}
	return &out, nil
}

func (c *Client) sendRequest(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", client.ErrConfig, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", client.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", client.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: server returned status %d: %s", client.ErrTransport, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}
