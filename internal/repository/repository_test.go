package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/Iron-Ham/buildrecorder/internal/buildinfo"
	"github.com/Iron-Ham/buildrecorder/internal/config"
	"github.com/Iron-Ham/buildrecorder/internal/errors"
	"github.com/Iron-Ham/buildrecorder/internal/logging"
)

type capturedRequest struct {
	Method        string
	Path          string
	Authorization string
	Md5           string
	Sha1          string
	ContentType   string
	Body          string
}

type fakeServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []capturedRequest
	status   int
	reply    string
}

func newFakeServer(t *testing.T, tls bool) *fakeServer {
	t.Helper()
	fs := &fakeServer{status: http.StatusCreated}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fs.mu.Lock()
		fs.requests = append(fs.requests, capturedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			Md5:           r.Header.Get(HeaderChecksumMd5),
			Sha1:          r.Header.Get(HeaderChecksumSha1),
			ContentType:   r.Header.Get("Content-Type"),
			Body:          string(body),
		})
		status, reply := fs.status, fs.reply
		fs.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	})
	if tls {
		fs.Server = httptest.NewTLSServer(handler)
	} else {
		fs.Server = httptest.NewServer(handler)
	}
	t.Cleanup(fs.Close)
	return fs
}

func (s *fakeServer) Requests() []capturedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]capturedRequest(nil), s.requests...)
}

func memFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func jarDetails() buildinfo.DeployDetails {
	return buildinfo.DeployDetails{
		ModuleID:         "org.acme:app:1.0",
		ArtifactName:     "app-1.0.jar",
		ArtifactPath:     "org/acme/app/1.0/app-1.0.jar",
		File:             "/work/target/app-1.0.jar",
		TargetRepository: "libs-release",
		Md5:              "900150983cd24fb0d6963f7d28e17f72",
		Sha1:             "a9993e364706816aba3e25717850c26c9cd0d89d",
		Properties:       map[string]string{"os": "linux", "branch": "main"},
	}
}

func TestMatrixParams(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]string
		want  string
	}{
		{"none", nil, ""},
		{"sorted by key", map[string]string{"os": "linux", "branch": "main"}, ";branch=main;os=linux"},
		{"escaped", map[string]string{"build name": "a;b"}, ";build%20name=a%3Bb"},
		{"equals in key and value", map[string]string{"a=b": "c=d"}, ";a%3Db=c%3Dd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatrixParams(tt.props); got != tt.want {
				t.Errorf("MatrixParams() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewHTTPClient_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "repo.example.com", "://bad"} {
		if _, err := NewHTTPClient(raw); err == nil {
			t.Errorf("NewHTTPClient(%q) should fail", raw)
		}
	}
}

func TestHTTPClient_Upload(t *testing.T) {
	srv := newFakeServer(t, false)
	src := afero.NewMemMapFs()
	memFile(t, src, "/work/target/app-1.0.jar", "abc")

	c, err := NewHTTPClient(srv.URL+"/artifactory/",
		WithSourceFs(src),
		WithAccessToken("s3cret"),
	)
	if err != nil {
		t.Fatalf("NewHTTPClient failed: %v", err)
	}

	if err := c.Upload(context.Background(), jarDetails()); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	want := []capturedRequest{{
		Method:        http.MethodPut,
		Path:          "/artifactory/libs-release/org/acme/app/1.0/app-1.0.jar;branch=main;os=linux",
		Authorization: "Bearer s3cret",
		Md5:           "900150983cd24fb0d6963f7d28e17f72",
		Sha1:          "a9993e364706816aba3e25717850c26c9cd0d89d",
		ContentType:   "application/octet-stream",
		Body:          "abc",
	}}
	if diff := cmp.Diff(want, srv.Requests()); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestHTTPClient_UploadMissingFile(t *testing.T) {
	srv := newFakeServer(t, false)
	c, err := NewHTTPClient(srv.URL, WithSourceFs(afero.NewMemMapFs()))
	if err != nil {
		t.Fatalf("NewHTTPClient failed: %v", err)
	}

	if err := c.Upload(context.Background(), jarDetails()); err == nil {
		t.Fatal("Upload should fail when the file is missing")
	}
	if n := len(srv.Requests()); n != 0 {
		t.Errorf("server received %d requests, want 0", n)
	}
}

func TestHTTPClient_UploadRejected(t *testing.T) {
	srv := newFakeServer(t, false)
	srv.status = http.StatusForbidden
	srv.reply = "  no permission to deploy  \n"

	src := afero.NewMemMapFs()
	memFile(t, src, "/work/target/app-1.0.jar", "abc")
	c, err := NewHTTPClient(srv.URL, WithSourceFs(src))
	if err != nil {
		t.Fatalf("NewHTTPClient failed: %v", err)
	}

	err = c.Upload(context.Background(), jarDetails())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Upload error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", statusErr.StatusCode)
	}
	if statusErr.Body != "no permission to deploy" {
		t.Errorf("Body = %q", statusErr.Body)
	}
	if !strings.Contains(err.Error(), "403 Forbidden: no permission to deploy") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestHTTPClient_PublishBuildInfo(t *testing.T) {
	srv := newFakeServer(t, false)
	c, err := NewHTTPClient(srv.URL)
	if err != nil {
		t.Fatalf("NewHTTPClient failed: %v", err)
	}

	info := &buildinfo.BuildInfo{Name: "app", Number: "7", Modules: []buildinfo.Module{{ID: "org.acme:app:1.0"}}}
	if err := c.PublishBuildInfo(context.Background(), info); err != nil {
		t.Fatalf("PublishBuildInfo failed: %v", err)
	}

	reqs := srv.Requests()
	if len(reqs) != 1 {
		t.Fatalf("got %d requests, want 1", len(reqs))
	}
	if reqs[0].Method != http.MethodPut || reqs[0].Path != "/api/build" {
		t.Errorf("request = %s %s, want PUT /api/build", reqs[0].Method, reqs[0].Path)
	}
	if reqs[0].ContentType != "application/json" {
		t.Errorf("Content-Type = %q", reqs[0].ContentType)
	}
	if reqs[0].Authorization != "" {
		t.Errorf("Authorization = %q, want none", reqs[0].Authorization)
	}

	var got buildinfo.BuildInfo
	if err := json.Unmarshal([]byte(reqs[0].Body), &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if got.Name != "app" || got.Number != "7" || len(got.Modules) != 1 {
		t.Errorf("published %+v", got)
	}
}

func TestHTTPClient_InsecureTLS(t *testing.T) {
	srv := newFakeServer(t, true)
	info := &buildinfo.BuildInfo{Name: "app", Number: "1"}

	strict, err := NewHTTPClient(srv.URL)
	if err != nil {
		t.Fatalf("NewHTTPClient failed: %v", err)
	}
	if err := strict.PublishBuildInfo(context.Background(), info); err == nil {
		t.Error("verifying client should reject the self-signed certificate")
	}

	insecure, err := NewHTTPClient(srv.URL, WithInsecureTLS(true))
	if err != nil {
		t.Fatalf("NewHTTPClient failed: %v", err)
	}
	if err := insecure.PublishBuildInfo(context.Background(), info); err != nil {
		t.Errorf("insecure client failed: %v", err)
	}
}

func TestHTTPClient_CanceledContext(t *testing.T) {
	srv := newFakeServer(t, false)
	c, err := NewHTTPClient(srv.URL)
	if err != nil {
		t.Fatalf("NewHTTPClient failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = c.PublishBuildInfo(ctx, &buildinfo.BuildInfo{Name: "app", Number: "1"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c, err := NewHTTPClient(srv.URL, WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewHTTPClient failed: %v", err)
	}

	err = c.PublishBuildInfo(context.Background(), &buildinfo.BuildInfo{Name: "app", Number: "1"})
	var timeoutErr *errors.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("error = %v, want *TimeoutError", err)
	}
	if timeoutErr.Duration != 50*time.Millisecond {
		t.Errorf("Duration = %v, want 50ms", timeoutErr.Duration)
	}
	if !strings.HasPrefix(timeoutErr.Operation, "PUT ") {
		t.Errorf("Operation = %q, want PUT request", timeoutErr.Operation)
	}
	if !errors.Is(err, errors.ErrTimeout) || !errors.IsRetryable(err) {
		t.Errorf("timeout should match ErrTimeout and be retryable: %v", err)
	}
}

func TestLocalClient(t *testing.T) {
	fs := afero.NewMemMapFs()
	memFile(t, fs, "/work/target/app-1.0.jar", "abc")

	c, err := NewLocalClient("/repo", WithFs(fs))
	if err != nil {
		t.Fatalf("NewLocalClient failed: %v", err)
	}
	ctx := context.Background()

	if err := c.Upload(ctx, jarDetails()); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	info := &buildinfo.BuildInfo{Name: "app", Number: "7"}
	if err := c.PublishBuildInfo(ctx, info); err != nil {
		t.Fatalf("PublishBuildInfo failed: %v", err)
	}

	want := map[string]string{
		"/repo/libs-release/org/acme/app/1.0/app-1.0.jar":      "abc",
		"/repo/libs-release/org/acme/app/1.0/app-1.0.jar.md5":  "900150983cd24fb0d6963f7d28e17f72",
		"/repo/libs-release/org/acme/app/1.0/app-1.0.jar.sha1": "a9993e364706816aba3e25717850c26c9cd0d89d",
	}
	for path, content := range want {
		got, err := afero.ReadFile(fs, path)
		if err != nil {
			t.Errorf("ReadFile(%s): %v", path, err)
			continue
		}
		if string(got) != content {
			t.Errorf("%s = %q, want %q", path, got, content)
		}
	}

	raw, err := afero.ReadFile(fs, "/repo/builds/app/7.json")
	if err != nil {
		t.Fatalf("build info not stored: %v", err)
	}
	var stored buildinfo.BuildInfo
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("stored build info is not JSON: %v", err)
	}
	if stored.Name != "app" || stored.Number != "7" {
		t.Errorf("stored %+v", stored)
	}
}

func TestLocalClient_RejectsEscapingPaths(t *testing.T) {
	fs := afero.NewMemMapFs()
	memFile(t, fs, "/work/target/app-1.0.jar", "abc")
	c, err := NewLocalClient("/repo", WithFs(fs))
	if err != nil {
		t.Fatalf("NewLocalClient failed: %v", err)
	}

	d := jarDetails()
	d.TargetRepository = ".."
	d.ArtifactPath = "../etc/passwd"
	if err := c.Upload(context.Background(), d); err == nil {
		t.Error("Upload should reject paths outside the repository root")
	}

	info := &buildinfo.BuildInfo{Name: "../../x", Number: "1"}
	if err := c.PublishBuildInfo(context.Background(), info); err == nil {
		t.Error("PublishBuildInfo should reject names escaping the builds directory")
	}
}

func TestNewLocalClient_RequiresRoot(t *testing.T) {
	if _, err := NewLocalClient("  "); err == nil {
		t.Error("NewLocalClient should fail without a root directory")
	}
}

func TestDryRunClient(t *testing.T) {
	var buf bytes.Buffer
	c := NewDryRunClient(logging.NewLoggerTo(&buf, logging.LevelInfo))
	ctx := context.Background()

	if err := c.Upload(ctx, jarDetails()); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := c.PublishBuildInfo(ctx, &buildinfo.BuildInfo{Name: "app", Number: "1"}); err != nil {
		t.Fatalf("PublishBuildInfo failed: %v", err)
	}

	uploads, published := c.Counts()
	if uploads != 1 || published != 1 {
		t.Errorf("Counts() = %d, %d, want 1, 1", uploads, published)
	}
	for _, want := range []string{"would upload artifact", "org/acme/app/1.0/app-1.0.jar", "would publish build info"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log missing %q:\n%s", want, buf.String())
		}
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.RepositoryConfig
		want    string
		wantErr bool
	}{
		{"http", config.RepositoryConfig{Type: config.RepositoryHTTP, URL: "https://repo.example.com"}, "*repository.HTTPClient", false},
		{"http without url", config.RepositoryConfig{Type: config.RepositoryHTTP}, "", true},
		{"local", config.RepositoryConfig{Type: config.RepositoryLocal, LocalDir: t.TempDir()}, "*repository.LocalClient", false},
		{"local without dir", config.RepositoryConfig{Type: config.RepositoryLocal}, "", true},
		{"dry run", config.RepositoryConfig{Type: config.RepositoryDryRun}, "*repository.DryRunClient", false},
		{"unknown", config.RepositoryConfig{Type: "ftp"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Open(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if c != nil {
					t.Errorf("Open() client = %T, want nil", c)
				}
				return
			}
			if got := typeName(c); got != tt.want {
				t.Errorf("Open() client = %s, want %s", got, tt.want)
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *HTTPClient:
		return "*repository.HTTPClient"
	case *LocalClient:
		return "*repository.LocalClient"
	case *DryRunClient:
		return "*repository.DryRunClient"
	default:
		return "unknown"
	}
}
