// Package repository provides the artifact-repository clients the deployer
// uploads to: an HTTP client for a remote repository service, a client
// that lays artifacts out under a local directory, and a dry-run client
// that only logs.
package repository

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/buildrecorder/internal/buildinfo"
	"github.com/Iron-Ham/buildrecorder/internal/errors"
	"github.com/Iron-Ham/buildrecorder/internal/logging"
)

// Checksum headers let the server verify uploads.
const (
	HeaderChecksumMd5  = "X-Checksum-Md5"
	HeaderChecksumSha1 = "X-Checksum-Sha1"
)

// BuildInfoPath is where build info is published, relative to the base URL.
const BuildInfoPath = "api/build"

// maxErrorBody caps how much of an error response is kept in the error.
const maxErrorBody = 512

// HTTPClient uploads artifacts to a remote repository service.
type HTTPClient struct {
	baseURL     string
	accessToken string
	client      *http.Client
	timeout     time.Duration
	insecureTLS bool
	fs          afero.Fs
	logger      *logging.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithAccessToken sends token as a bearer token on every request.
func WithAccessToken(token string) HTTPOption {
	return func(c *HTTPClient) {
		c.accessToken = token
	}
}

// WithTimeout bounds each request. Zero disables the timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		c.timeout = d
	}
}

// WithInsecureTLS disables server certificate verification.
func WithInsecureTLS(insecure bool) HTTPOption {
	return func(c *HTTPClient) {
		c.insecureTLS = insecure
	}
}

// WithHTTPClient replaces the underlying http.Client. Timeout and TLS
// options are ignored when it is set.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		c.client = hc
	}
}

// WithSourceFs sets the filesystem artifact files are read from.
func WithSourceFs(fs afero.Fs) HTTPOption {
	return func(c *HTTPClient) {
		if fs != nil {
			c.fs = fs
		}
	}
}

// WithHTTPLogger sets the client's logger.
func WithHTTPLogger(logger *logging.Logger) HTTPOption {
	return func(c *HTTPClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewHTTPClient creates a client for the repository service at baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPOption) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.NewConfigError("invalid repository URL", err).WithKey("repository.url")
	}

	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		fs:      afero.NewOsFs(),
		logger:  logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if c.insecureTLS {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via repository.insecure_tls
		}
		c.client = &http.Client{Transport: transport, Timeout: c.timeout}
	}
	return c, nil
}

// ArtifactURL returns the upload URL for d: the repository path followed by
// d's properties as ";key=value" matrix parameters in key order.
func (c *HTTPClient) ArtifactURL(d buildinfo.DeployDetails) string {
	var sb strings.Builder
	sb.WriteString(c.baseURL)
	sb.WriteString("/")
	sb.WriteString(escapePath(d.TargetRepository))
	sb.WriteString("/")
	sb.WriteString(escapePath(strings.TrimPrefix(d.ArtifactPath, "/")))
	sb.WriteString(MatrixParams(d.Properties))
	return sb.String()
}

// MatrixParams encodes props as ";key=value" pairs sorted by key.
func MatrixParams(props map[string]string) string {
	if len(props) == 0 {
		return ""
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(";")
		sb.WriteString(escapeMatrix(k))
		sb.WriteString("=")
		sb.WriteString(escapeMatrix(props[k]))
	}
	return sb.String()
}

// escapeMatrix path-escapes s and also encodes '=', which PathEscape keeps.
func escapeMatrix(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), "=", "%3D")
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// Upload PUTs the artifact file with its checksums.
func (c *HTTPClient) Upload(ctx context.Context, d buildinfo.DeployDetails) error {
	f, err := c.fs.Open(d.File)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.File, err)
	}
	defer func() { _ = f.Close() }()

	var size int64 = -1
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	target := c.ArtifactURL(d)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, f)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	if size >= 0 {
		req.ContentLength = size
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if d.Md5 != "" {
		req.Header.Set(HeaderChecksumMd5, d.Md5)
	}
	if d.Sha1 != "" {
		req.Header.Set(HeaderChecksumSha1, d.Sha1)
	}

	start := time.Now()
	if err := c.do(req); err != nil {
		return err
	}
	c.logger.Debug("artifact uploaded",
		"url", target,
		"bytes", size,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// PublishBuildInfo PUTs info as JSON to the build info endpoint.
func (c *HTTPClient) PublishBuildInfo(ctx context.Context, info *buildinfo.BuildInfo) error {
	var body bytes.Buffer
	if err := buildinfo.WriteJSON(&body, info); err != nil {
		return err
	}

	target := c.baseURL + "/" + BuildInfoPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, &body)
	if err != nil {
		return fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(req); err != nil {
		return err
	}
	c.logger.Debug("build info published", "url", target, "name", info.Name, "number", info.Number)
	return nil
}

func (c *HTTPClient) do(req *http.Request) error {
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return errors.NewTimeoutError(req.Method+" "+req.URL.Redacted(), c.timeout).WithCause(err)
		}
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     req.Method,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// StatusError is returned when the repository answers with a non-2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}
