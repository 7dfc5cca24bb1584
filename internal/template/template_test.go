package template

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Iron-Ham/buildrecorder/internal/errors"
	"github.com/Iron-Ham/buildrecorder/internal/testutil"
)

func TestResolve(t *testing.T) {
	env := map[string]string{
		"BUILD_NAME":   "app",
		"BUILD_NUMBER": "42",
		"BLANK":        "  ",
	}
	lookup := func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no placeholder", "plain", "plain"},
		{"single var", "{{BUILD_NAME}}", "app"},
		{"first set wins", "{{MISSING|BUILD_NUMBER|BUILD_NAME}}", "42"},
		{"default used", `{{MISSING|"fallback"}}`, "fallback"},
		{"var beats default", `{{BUILD_NAME|"fallback"}}`, "app"},
		{"blank value skipped", `{{BLANK|"fallback"}}`, "fallback"},
		{"unset without default", "{{MISSING}}", ""},
		{"empty placeholder", "{{}}", ""},
		{"surrounding text", "release-{{BUILD_NUMBER}}-final", "release-42-final"},
		{"two placeholders", "{{BUILD_NAME}}/{{BUILD_NUMBER}}", "app/42"},
		{"empty tokens ignored", "{{||BUILD_NAME}}", "app"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.input, lookup)
			if err != nil {
				t.Fatalf("Resolve(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolve_MissingClose(t *testing.T) {
	_, err := Resolve("abc{{BUILD_NAME", func(string) (string, bool) { return "", false })
	if !errors.Is(err, errors.ErrUnresolvedTemplate) {
		t.Errorf("error = %v, want ErrUnresolvedTemplate", err)
	}
}

func TestResolver_EnvFileOverlay(t *testing.T) {
	dir := testutil.SetupWorkspace(t, map[string]string{
		"build.env": "BUILD_NAME=from-file\nVCS_REVISION=abc123\n",
	})

	r := NewResolverFromMap(map[string]string{"BUILD_NAME": "from-env"})
	if err := r.LoadEnvFile(dir + "/build.env"); err != nil {
		t.Fatalf("LoadEnvFile failed: %v", err)
	}

	got, err := r.Resolve("{{BUILD_NAME}}@{{VCS_REVISION}}")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "from-env@abc123" {
		t.Errorf("Resolve() = %q, want from-env@abc123", got)
	}

	want := map[string]string{"BUILD_NAME": "from-env", "VCS_REVISION": "abc123"}
	if diff := cmp.Diff(want, r.Environ()); diff != "" {
		t.Errorf("Environ() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolver_LoadEnvFileMissing(t *testing.T) {
	r := NewResolverFromMap(nil)
	err := r.LoadEnvFile(t.TempDir() + "/nope.env")

	var cfgErr *errors.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want *ConfigError", err)
	}
}

func TestResolver_ResolveMap(t *testing.T) {
	r := NewResolverFromMap(map[string]string{"TEAM": "core"})

	got, err := r.ResolveMap(map[string]string{"team": "{{TEAM}}", "static": "x"})
	if err != nil {
		t.Fatalf("ResolveMap failed: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"team": "core", "static": "x"}, got); diff != "" {
		t.Errorf("ResolveMap() mismatch (-want +got):\n%s", diff)
	}

	if _, err := r.ResolveMap(map[string]string{"bad": "{{TEAM"}); !errors.Is(err, errors.ErrUnresolvedTemplate) {
		t.Errorf("error = %v, want ErrUnresolvedTemplate", err)
	}
}
