// Package gradio is a minimal client for the HTTP API of Gradio
// applications, including those hosted on Hugging Face Spaces.
package gradio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultHubURL  = "https://huggingface.co"
	defaultTimeout = 2 * time.Minute
)

// FileData references a file that was uploaded to the Gradio server.
type FileData struct {
	Path     string       `json:"path"`
	OrigName string       `json:"orig_name,omitempty"`
	MimeType string       `json:"mime_type,omitempty"`
	Size     int          `json:"size,omitempty"`
	Meta     FileDataMeta `json:"meta"`
}

type FileDataMeta struct {
	Type string `json:"_type"`
}

type connection struct {
	root      string
	apiPrefix string
	version   string
}

type Client struct {
	httpClient *http.Client
	hubURL     string
	space      string
	token      string

	mu   sync.Mutex
	conn *connection
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHubURL overrides the Hugging Face endpoint used to resolve space hosts.
func WithHubURL(hubURL string) Option {
	return func(c *Client) {
		c.hubURL = strings.TrimRight(hubURL, "/")
	}
}

// WithToken sets a Hugging Face access token for private spaces.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a client for a space id such as "owner/name" or for the
// URL of a Gradio server. No network call happens until Connect or Predict.
func NewClient(space string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		hubURL:     DefaultHubURL,
		space:      strings.TrimSpace(space),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Space() string {
	return c.space
}

// Connect resolves the server root and reads its config. The result is
// reused until Reset is called.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.connection(ctx)
	return err
}

// Reset drops the cached connection so the next call resolves it again.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = nil
}

func (c *Client) connection(ctx context.Context) (*connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}

	root, err := c.resolveRoot(ctx)
	if err != nil {
		return nil, err
	}

	var config struct {
		Version   string `json:"version"`
		APIPrefix string `json:"api_prefix"`
	}
	if err := c.getJSON(ctx, root+"/config", &config); err != nil {
		return nil, fmt.Errorf("failed to read config of %s: %w", c.space, err)
	}

	conn := &connection{
		root:      root,
		apiPrefix: strings.TrimRight(config.APIPrefix, "/"),
		version:   config.Version,
	}
	slog.Info("connected to gradio app", "space", c.space, "root", conn.root, "version", conn.version, "api_prefix", conn.apiPrefix)
	c.conn = conn
	return conn, nil
}

func (c *Client) resolveRoot(ctx context.Context) (string, error) {
	if c.space == "" {
		return "", fmt.Errorf("space must not be empty")
	}
	if strings.HasPrefix(c.space, "http://") || strings.HasPrefix(c.space, "https://") {
		return strings.TrimRight(c.space, "/"), nil
	}
	if strings.Count(c.space, "/") != 1 {
		return "", fmt.Errorf("space %q is neither a url nor of the form owner/name", c.space)
	}

	var host struct {
		Subdomain string `json:"subdomain"`
		Host      string `json:"host"`
	}
	endpoint := fmt.Sprintf("%s/api/spaces/%s/host", c.hubURL, c.space)
	if err := c.getJSON(ctx, endpoint, &host); err != nil {
		return "", fmt.Errorf("failed to resolve host of space %s: %w", c.space, err)
	}
	if host.Host == "" {
		return "", fmt.Errorf("hub returned no host for space %s", c.space)
	}
	return strings.TrimRight(host.Host, "/"), nil
}

// Upload sends content to the server and returns a reference that can be
// passed as a file argument to Predict.
func (c *Client) Upload(ctx context.Context, name, mimeType string, content []byte) (*FileData, error) {
	conn, err := c.connection(ctx)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, escapeQuotes(name)))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to write multipart part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, conn.endpoint("/upload"), &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var paths []string
	if err := c.doJSON(req, &paths); err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", name, err)
	}
	if len(paths) != 1 {
		return nil, fmt.Errorf("upload of %s returned %d paths, expected 1", name, len(paths))
	}

	return &FileData{
		Path:     paths[0],
		OrigName: name,
		MimeType: mimeType,
		Size:     len(content),
		Meta:     FileDataMeta{Type: "gradio.FileData"},
	}, nil
}

// Predict calls the named endpoint (e.g. "/predict") with the given
// arguments and waits for the result. The returned slice holds the raw
// output values in the order the endpoint declares them.
func (c *Client) Predict(ctx context.Context, endpoint string, args ...any) ([]json.RawMessage, error) {
	conn, err := c.connection(ctx)
	if err != nil {
		return nil, err
	}
	callPath := "/call/" + strings.TrimPrefix(endpoint, "/")

	payload, err := json.Marshal(map[string]any{"data": args})
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, conn.endpoint(callPath), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var queued struct {
		EventID string `json:"event_id"`
	}
	if err := c.doJSON(req, &queued); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", endpoint, err)
	}
	if queued.EventID == "" {
		return nil, fmt.Errorf("call to %s returned no event id", endpoint)
	}
	slog.Debug("gradio call queued", "endpoint", endpoint, "event_id", queued.EventID)

	req, err = c.newRequest(ctx, http.MethodGet, conn.endpoint(callPath+"/"+url.PathEscape(queued.EventID)), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open result stream for %s: %w", endpoint, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Debug("failed to close result stream", "error", cerr)
		}
	}()
	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("failed to open result stream for %s: %w", endpoint, err)
	}

	return readResult(resp.Body)
}

func (conn *connection) endpoint(path string) string {
	return conn.root + conn.apiPrefix + path
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, target string, v any) error {
	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, v)
}

func (c *Client) doJSON(req *http.Request, v any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func escapeQuotes(s string) string {
	return strings.NewReplacer("\\", "\\\\", `"`, "\\\"").Replace(s)
}
