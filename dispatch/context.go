// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package dispatch

import (
	"context"
	"net/http"

	"github.com/TechEmpower/tfb-status-sub003/route"
)

// Match is attached to the request context once a route has fully
// matched. A handler registered under multiple routes can branch on
// which one fired.
type Match struct {
	// Route is the matched route descriptor.
	Route route.Descriptor

	// Params holds the captured variable segments.
	Params route.Params
}

type contextKey struct{}

var matchContextKey = &contextKey{}

// NewContext returns a new [context.Context] carrying the given [Match].
func NewContext(parent context.Context, m *Match) context.Context {
	return context.WithValue(parent, matchContextKey, m)
}

// FromContext extracts the [Match] from the given [context.Context],
// if present.
func FromContext(ctx context.Context) (*Match, bool) {
	m, ok := ctx.Value(matchContextKey).(*Match)
	return m, ok
}

// PathValue returns the value captured for the named variable segment,
// or the empty string if the request did not match such a segment.
func PathValue(r *http.Request, name string) string {
	m, ok := FromContext(r.Context())
	if !ok {
		return ""
	}
	return m.Params[name]
}

// Wildcard returns the remainder of the request path captured by a
// trailing wildcard segment, or the empty string.
func Wildcard(r *http.Request) string {
	return PathValue(r, route.WildcardParam)
}
