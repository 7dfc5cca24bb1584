// Package template resolves {{VAR|VAR2|"default"}} placeholders in
// configuration values.
//
// Inside a placeholder, tokens are separated by "|". Each token but a quoted
// last one names a variable; the first one with a non-blank value wins. A
// quoted last token is the default. With no match and no default the
// placeholder resolves to the empty string. Text outside placeholders is
// kept as is.
package template

import (
	"os"
	"strings"

	"github.com/subosito/gotenv"

	"github.com/Iron-Ham/buildrecorder/internal/errors"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// LookupFunc returns the value of a variable and whether it is set.
type LookupFunc func(name string) (string, bool)

// Resolver resolves placeholders against the process environment, overlaid
// by variables loaded from env files. Process variables take precedence.
type Resolver struct {
	overlay map[string]string
	lookup  LookupFunc
	environ func() []string
}

// NewResolver returns a resolver over the process environment.
func NewResolver() *Resolver {
	return &Resolver{
		overlay: map[string]string{},
		lookup:  os.LookupEnv,
		environ: os.Environ,
	}
}

// NewResolverFromMap returns a resolver over vars instead of the process
// environment.
func NewResolverFromMap(vars map[string]string) *Resolver {
	return &Resolver{
		overlay: map[string]string{},
		lookup: func(name string) (string, bool) {
			v, ok := vars[name]
			return v, ok
		},
		environ: func() []string {
			out := make([]string, 0, len(vars))
			for k, v := range vars {
				out = append(out, k+"="+v)
			}
			return out
		},
	}
}

// LoadEnvFile reads KEY=value pairs from path into the overlay. Later files
// override earlier ones for keys they share.
func (r *Resolver) LoadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.NewConfigError("cannot open env file", err).WithKey(path)
	}
	defer func() { _ = f.Close() }()

	env, err := gotenv.StrictParse(f)
	if err != nil {
		return errors.NewConfigError("cannot parse env file", err).WithKey(path)
	}
	for k, v := range env {
		r.overlay[k] = v
	}
	return nil
}

// Lookup returns the value of name from the environment or the overlay.
func (r *Resolver) Lookup(name string) (string, bool) {
	if v, ok := r.lookup(name); ok && strings.TrimSpace(v) != "" {
		return v, true
	}
	v, ok := r.overlay[name]
	return v, ok
}

// Environ returns every variable visible to the resolver as a map. Overlay
// entries are included unless the process environment sets them.
func (r *Resolver) Environ() map[string]string {
	out := make(map[string]string, len(r.overlay))
	for k, v := range r.overlay {
		out[k] = v
	}
	for _, kv := range r.environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}

// Resolve expands every placeholder in input.
func (r *Resolver) Resolve(input string) (string, error) {
	return Resolve(input, r.Lookup)
}

// ResolveMap returns a copy of m with every value resolved. The first
// failing key is reported in the error.
func (r *Resolver) ResolveMap(m map[string]string) (map[string]string, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		resolved, err := r.Resolve(v)
		if err != nil {
			return nil, errors.NewConfigError("cannot resolve value", err).WithKey(k)
		}
		out[k] = resolved
	}
	return out, nil
}

// Resolve expands every placeholder in input using lookup. A placeholder
// without a closing "}}" is an error wrapping errors.ErrUnresolvedTemplate.
func Resolve(input string, lookup LookupFunc) (string, error) {
	if !strings.Contains(input, openDelim) {
		return input, nil
	}

	var b strings.Builder
	for input != "" {
		before, rest, found := strings.Cut(input, openDelim)
		b.WriteString(before)
		if !found {
			break
		}
		inner, after, closed := strings.Cut(rest, closeDelim)
		if !closed {
			return "", errors.NewValidationError("missing '}}'").
				WithValue(openDelim + rest).
				WithCause(errors.ErrUnresolvedTemplate)
		}
		b.WriteString(resolvePlaceholder(inner, lookup))
		input = after
	}
	return b.String(), nil
}

func resolvePlaceholder(inner string, lookup LookupFunc) string {
	var tokens []string
	for _, t := range strings.Split(inner, "|") {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 {
		return ""
	}

	def, hasDefault := quoted(tokens[len(tokens)-1])
	if hasDefault {
		tokens = tokens[:len(tokens)-1]
	}
	for _, name := range tokens {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return def
}

// quoted returns the text between the first two double quotes of s.
func quoted(s string) (string, bool) {
	_, rest, ok := strings.Cut(s, `"`)
	if !ok {
		return "", false
	}
	inner, _, ok := strings.Cut(rest, `"`)
	return inner, ok
}
