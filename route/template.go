// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package route

import (
	"fmt"
	"strings"
)

// WildcardParam is the params key under which a trailing wildcard
// segment stores the captured remainder of the request path.
const WildcardParam = "*"

// Params holds the variable segment values captured while matching a
// request path against a [Template].
type Params map[string]string

// Template is a parsed path template. Templates are immutable and safe
// for concurrent use.
type Template struct {
	raw      string
	segments []segment
	wildcard bool
}

type segment struct {
	literal string
	name    string
}

func (s segment) isVar() bool {
	return s.name != ""
}

// InvalidTemplateError occurs when a path template cannot be parsed.
type InvalidTemplateError struct {
	Template string
	Reason   string
}

// Error implements the error interface.
func (e InvalidTemplateError) Error() string {
	return fmt.Sprintf("invalid path template %q: %s", e.Template, e.Reason)
}

// ParseTemplate parses a path template. A template is either a literal
// path, a path with {name} variable segments, or a path whose final
// segment is * which captures the remainder of the request path.
func ParseTemplate(path string) (Template, error) {
	if !strings.HasPrefix(path, "/") {
		return Template{}, InvalidTemplateError{Template: path, Reason: "must begin with '/'"}
	}

	t := Template{raw: path}
	if path == "/" {
		return t, nil
	}

	seen := make(map[string]struct{})
	parts := strings.Split(path[1:], "/")
	for i, part := range parts {
		switch {
		case part == WildcardParam:
			if i != len(parts)-1 {
				return Template{}, InvalidTemplateError{Template: path, Reason: "'*' is only allowed as the final segment"}
			}
			t.wildcard = true
		case strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}"):
			name := part[1 : len(part)-1]
			if !validVarName(name) {
				return Template{}, InvalidTemplateError{Template: path, Reason: fmt.Sprintf("invalid variable name %q", name)}
			}
			if _, ok := seen[name]; ok {
				return Template{}, InvalidTemplateError{Template: path, Reason: fmt.Sprintf("variable %q appears more than once", name)}
			}
			seen[name] = struct{}{}
			t.segments = append(t.segments, segment{name: name})
		case part == "":
			return Template{}, InvalidTemplateError{Template: path, Reason: "empty path segment"}
		case strings.ContainsAny(part, "{}"):
			return Template{}, InvalidTemplateError{Template: path, Reason: fmt.Sprintf("malformed segment %q", part)}
		default:
			t.segments = append(t.segments, segment{literal: part})
		}
	}
	return t, nil
}

func validVarName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// String returns the template as it was written.
func (t Template) String() string {
	return t.raw
}

// Wildcard reports whether the template ends in a trailing wildcard.
func (t Template) Wildcard() bool {
	return t.wildcard
}

// NumVars returns the number of variable segments.
func (t Template) NumVars() int {
	n := 0
	for _, s := range t.segments {
		if s.isVar() {
			n++
		}
	}
	return n
}

// NumSegments returns the number of fixed segments, excluding any
// trailing wildcard.
func (t Template) NumSegments() int {
	return len(t.segments)
}

// Vars returns the variable names in path order.
func (t Template) Vars() []string {
	var names []string
	for _, s := range t.segments {
		if s.isVar() {
			names = append(names, s.name)
		}
	}
	return names
}

// Shape returns the template with variable names erased. Two templates
// with equal shapes are indistinguishable at match time.
func (t Template) Shape() string {
	var sb strings.Builder
	for _, s := range t.segments {
		sb.WriteByte('/')
		if s.isVar() {
			sb.WriteString("{}")
			continue
		}
		sb.WriteString(s.literal)
	}
	if t.wildcard {
		sb.WriteString("/*")
	}
	if sb.Len() == 0 {
		return "/"
	}
	return sb.String()
}

// Match matches a request path against the template, capturing variable
// segments and, for wildcard templates, the remainder of the path under
// [WildcardParam].
func (t Template) Match(path string) (Params, bool) {
	path = strings.TrimPrefix(path, "/")

	var parts []string
	if path != "" {
		parts = strings.Split(path, "/")
	}

	if len(parts) < len(t.segments) {
		return nil, false
	}
	if !t.wildcard && len(parts) != len(t.segments) {
		return nil, false
	}

	var params Params
	for i, s := range t.segments {
		if !s.isVar() {
			if parts[i] != s.literal {
				return nil, false
			}
			continue
		}
		if parts[i] == "" {
			return nil, false
		}
		if params == nil {
			params = make(Params)
		}
		params[s.name] = parts[i]
	}
	if t.wildcard {
		if params == nil {
			params = make(Params)
		}
		params[WildcardParam] = strings.Join(parts[len(t.segments):], "/")
	}
	return params, true
}
