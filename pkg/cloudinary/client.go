package cloudinary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/menta2k/vision-lens/pkg/client"
	"github.com/menta2k/vision-lens/pkg/types"
)

// DefaultBaseURL is the public Cloudinary upload API
const DefaultBaseURL = "https://api.cloudinary.com"

var (
	ErrInvalidCloudinaryURL = fmt.Errorf("%w: invalid CLOUDINARY_URL", client.ErrConfig)
	ErrMissingUploadPreset  = fmt.Errorf("%w: missing CLOUDINARY_UNSIGNED_PRESET", client.ErrConfig)
)

// cloudinary://<api_key>:<api_secret>@<cloud_name>
var connStringRe = regexp.MustCompile(`^cloudinary://[^:]+:[^@]*@([^/?#]+)`)

// Config describes where unsigned uploads go
type Config struct {
	CloudName    string
	URL          string // connection string, used when CloudName is empty
	UploadPreset string
	BaseURL      string
	Timeout      time.Duration
}

// Client performs unsigned multipart uploads
type Client struct {
	cfg        Config
	httpClient *http.Client
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClient creates an upload client. Configuration is checked on every
// Upload so a misconfigured client still reports a config error per attempt.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// CloudNameFromURL extracts the cloud name from a Cloudinary connection string
func CloudNameFromURL(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	m := connStringRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// cloudName resolves the bucket identifier, explicit name first
func (c *Client) cloudName() (string, error) {
	if c.cfg.CloudName != "" {
		return c.cfg.CloudName, nil
	}
	if name, ok := CloudNameFromURL(c.cfg.URL); ok {
		return name, nil
	}
	return "", ErrInvalidCloudinaryURL
}

// Endpoint returns the upload URL for the configured cloud
func (c *Client) Endpoint() (string, error) {
	name, err := c.cloudName()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/v1_1/%s/image/upload", strings.TrimSuffix(c.cfg.BaseURL, "/"), name), nil
}

// Upload sends the file and returns its secure URL
func (c *Client) Upload(ctx context.Context, file types.Upload) (string, error) {
	endpoint, err := c.Endpoint()
	if err != nil {
		return "", err
	}
	if c.cfg.UploadPreset == "" {
		return "", ErrMissingUploadPreset
	}

	body, contentType, err := buildForm(file, c.cfg.UploadPreset)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", client.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", client.ErrTransport, err)
	}

	var out uploadResponse
	decodeErr := json.Unmarshal(data, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("%w: %s", client.ErrTransport, out.Error.Message)
		}
		return "", fmt.Errorf("%w: upload failed with status %d", client.ErrTransport, resp.StatusCode)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: failed to parse response: %v", client.ErrTransport, decodeErr)
	}
	if out.SecureURL == "" {
		return "", fmt.Errorf("%w: response has no secure_url", client.ErrTransport)
	}
	return out.SecureURL, nil
}

func buildForm(file types.Upload, preset string) (io.Reader, string, error) {
	if len(file.Data) == 0 {
		return nil, "", errors.New("empty file")
	}
	name := file.Name
	if name == "" {
		name = "upload"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("upload_preset", preset); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
