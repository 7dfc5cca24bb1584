// Package patterns decides whether a repository-relative deployment path is
// allowed by a set of include and exclude globs.
//
// Patterns use doublestar syntax ("**" crosses path segments, "*" does not)
// and are matched against the slash-separated deployment path. A pattern
// without a "/" is also tried against the last path segment, so "*.zip"
// excludes every zip regardless of its directory.
package patterns

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Iron-Ham/buildrecorder/internal/errors"
)

// IncludeExclude holds the configured include and exclude globs. An empty
// Include list includes everything.
type IncludeExclude struct {
	Include []string
	Exclude []string
}

// New builds an IncludeExclude from raw pattern lists. Entries may
// themselves be comma separated; blanks are dropped.
func New(include, exclude []string) IncludeExclude {
	return IncludeExclude{
		Include: Split(include...),
		Exclude: Split(exclude...),
	}
}

// Split flattens comma separated pattern strings into a list of trimmed,
// non-empty patterns.
func Split(values ...string) []string {
	var out []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate reports the first malformed pattern.
func (p IncludeExclude) Validate() error {
	for _, list := range [][]string{p.Include, p.Exclude} {
		for _, pat := range list {
			if !doublestar.ValidatePattern(pat) {
				return errors.NewValidationError("malformed glob").
					WithValue(pat).
					WithCause(errors.ErrInvalidPattern)
			}
		}
	}
	return nil
}

// Conflicts reports whether deployPath must not be deployed: either an
// include list is configured and the path matches none of it, or the path
// matches any exclude pattern.
func (p IncludeExclude) Conflicts(deployPath string) bool {
	deployPath = strings.TrimPrefix(deployPath, "/")
	if len(p.Include) > 0 && !MatchAny(p.Include, deployPath) {
		return true
	}
	return MatchAny(p.Exclude, deployPath)
}

// MatchAny reports whether name matches at least one pattern. Malformed
// patterns never match.
func MatchAny(pats []string, name string) bool {
	base := path.Base(name)
	for _, pat := range pats {
		if ok, _ := doublestar.Match(pat, name); ok {
			return true
		}
		if !strings.Contains(pat, "/") {
			if ok, _ := doublestar.Match(pat, base); ok {
				return true
			}
		}
	}
	return false
}

// Lower returns a copy with every pattern lower-cased. Matching lower-cased
// names against it ignores case, which is how environment variable names
// are filtered.
func (p IncludeExclude) Lower() IncludeExclude {
	lower := func(in []string) []string {
		if in == nil {
			return nil
		}
		out := make([]string, len(in))
		for i, s := range in {
			out[i] = strings.ToLower(s)
		}
		return out
	}
	return IncludeExclude{Include: lower(p.Include), Exclude: lower(p.Exclude)}
}
