// Package pipe implements the per-task output redirection rules (§4.2): a
// declared-order list of (regex, redirection-URI) pairs, where the first
// matching regex wins and an unmatched line falls through to the task's
// default panel.
package pipe

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel errors for redirection-URI parsing.
var (
	ErrUnknownScheme = errors.New("unknown redirection scheme")
	ErrMalformedURI  = errors.New("malformed redirection uri")
	ErrBadPattern    = errors.New("invalid pipe pattern")
)

// Kind distinguishes the two redirection targets a pipe rule can name.
type Kind int

const (
	// KindTab appends matched lines to a synthetic console panel.
	KindTab Kind = iota
	// KindFile appends matched lines to a file on disk.
	KindFile
)

// Redirection is a parsed pipe target: a kind plus a target template that
// may reference the matching regex's capture groups ($1, named groups),
// expanded per-line against the actual match.
type Redirection struct {
	Kind   Kind
	Target string
}

// ParseRedirection parses a pipe-map value into a Redirection per the
// grammar in §6:
//
//	/abs/path or ./rel/path  -> File, literal path
//	file://[host]/path       -> File, host+path concatenated
//	whiz://[host]/path       -> Tab, panel named host+path (after expansion)
func ParseRedirection(uri string) (Redirection, error) {
	if strings.HasPrefix(uri, "/") || strings.HasPrefix(uri, ".") {
		return Redirection{Kind: KindFile, Target: uri}, nil
	}

	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return Redirection{}, fmt.Errorf("%w: %s", ErrMalformedURI, uri)
	}

	host, path := rest, ""
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		host, path = rest[:i], rest[i:]
	}
	target := host + path

	switch scheme {
	case "file":
		return Redirection{Kind: KindFile, Target: target}, nil
	case "whiz":
		return Redirection{Kind: KindTab, Target: target}, nil
	default:
		return Redirection{}, fmt.Errorf("%w: %s", ErrUnknownScheme, scheme)
	}
}

// Rule is one compiled (regex, redirection) pair.
type Rule struct {
	Regex       *regexp.Regexp
	Redirection Redirection
}

// Expand renders this rule's target template against a matching line,
// substituting capture references the way regexp.Regexp.Expand does.
func (r Rule) Expand(line []byte, submatch []int) string {
	return string(r.Regex.ExpandString(nil, r.Redirection.Target, line, submatch))
}
