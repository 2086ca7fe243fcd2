// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package route

import (
	"fmt"
	"mime"
	"strings"
)

// MediaType is a parsed media type pattern of the form "type/subtype"
// where either part may be the wildcard "*". The zero value is not
// valid; use [ParseMediaType].
type MediaType struct {
	Type    string
	Subtype string
}

// AnyMediaType matches every media type.
var AnyMediaType = MediaType{Type: "*", Subtype: "*"}

// InvalidMediaTypeError occurs when a media type pattern cannot be parsed.
type InvalidMediaTypeError struct {
	Value  string
	Reason string
}

// Error implements the error interface.
func (e InvalidMediaTypeError) Error() string {
	return fmt.Sprintf("invalid media type %q: %s", e.Value, e.Reason)
}

// ParseMediaType parses a media type pattern. The empty string and "*"
// both parse to [AnyMediaType]. Any parameters (e.g. charset) are
// stripped; they play no part in matching.
func ParseMediaType(s string) (MediaType, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return AnyMediaType, nil
	}

	parsed, _, err := mime.ParseMediaType(s)
	if err != nil {
		return MediaType{}, InvalidMediaTypeError{Value: s, Reason: err.Error()}
	}

	typ, sub, ok := strings.Cut(parsed, "/")
	if !ok || typ == "" || sub == "" {
		return MediaType{}, InvalidMediaTypeError{Value: s, Reason: "expected type/subtype"}
	}
	if typ == "*" && sub != "*" {
		return MediaType{}, InvalidMediaTypeError{Value: s, Reason: "wildcard type requires wildcard subtype"}
	}
	return MediaType{Type: typ, Subtype: sub}, nil
}

// String implements the fmt.Stringer interface.
func (m MediaType) String() string {
	return m.Type + "/" + m.Subtype
}

// IsWildcard reports whether the media type matches everything.
func (m MediaType) IsWildcard() bool {
	return m.Type == "*" && m.Subtype == "*"
}

// Includes reports whether m, treated as a pattern, accepts the
// concrete media type other. A wildcard component accepts anything;
// a concrete component only accepts an equal concrete component.
func (m MediaType) Includes(other MediaType) bool {
	if m.Type != "*" && m.Type != other.Type {
		return false
	}
	if m.Subtype != "*" && m.Subtype != other.Subtype {
		return false
	}
	return true
}

// Compatible reports whether two patterns can match a common media
// type. It is used when both sides may carry wildcards, such as
// matching a route's produces pattern against an Accept range.
func (m MediaType) Compatible(other MediaType) bool {
	if m.Type != "*" && other.Type != "*" && m.Type != other.Type {
		return false
	}
	if m.Subtype != "*" && other.Subtype != "*" && m.Subtype != other.Subtype {
		return false
	}
	return true
}
