// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package route defines the unit of dispatch configuration, the route
// descriptor, along with the registry which validates descriptors at
// startup before any of them are served.
package route

import "net/http"

// Scope declares the lifetime of a handler produced by a [Factory].
type Scope int

const (
	// ScopeShared reuses a single handler instance across all requests.
	ScopeShared Scope = iota

	// ScopePerRequest constructs a fresh handler instance for each
	// request and disposes of it when the request completes.
	ScopePerRequest
)

// String implements the fmt.Stringer interface.
func (s Scope) String() string {
	switch s {
	case ScopePerRequest:
		return "per-request"
	default:
		return "shared"
	}
}

// Factory produces the handler a route dispatches to. It is not invoked
// until a request has fully matched the route.
type Factory func() (http.Handler, error)

// SharedHandler adapts an existing [http.Handler] into a [Factory].
func SharedHandler(h http.Handler) Factory {
	return func() (http.Handler, error) {
		return h, nil
	}
}

// Header is a response header injected for every response of a route.
type Header struct {
	Name  string
	Value string
}

// MethodAny is the wildcard method token. A route registered with it
// matches every HTTP method, and no other route may share its path.
const MethodAny = "*"

// Descriptor binds a (path, method, consumes, produces) tuple to a
// handler factory. Descriptors are immutable once handed to a registry.
type Descriptor struct {
	// Method is an HTTP verb token, or [MethodAny].
	Method string

	// Path is a path template: literal segments, {name} variable
	// segments and an optional trailing * capturing the remainder.
	Path string

	// Consumes is the Content-Type pattern accepted by the route.
	// Empty means any.
	Consumes string

	// Produces is the Accept pattern satisfied by the route.
	// Empty means any.
	Produces string

	// Scope declares the handler lifetime.
	Scope Scope

	// ResponseHeaders are injected into every response, in order.
	ResponseHeaders []Header

	// DisableCache marks responses of this route as non-cacheable.
	DisableCache bool

	// Factory produces the handler.
	Factory Factory
}

// Option represents configurable attributes of a [Descriptor].
type Option func(*Descriptor)

// Consumes sets the Content-Type pattern accepted by the route.
func Consumes(pattern string) Option {
	return func(d *Descriptor) {
		d.Consumes = pattern
	}
}

// Produces sets the Accept pattern satisfied by the route.
func Produces(pattern string) Option {
	return func(d *Descriptor) {
		d.Produces = pattern
	}
}

// PerRequest declares the route's handler as per-request scoped.
func PerRequest() Option {
	return func(d *Descriptor) {
		d.Scope = ScopePerRequest
	}
}

// ResponseHeader injects a response header for every response of
// the route. May be used multiple times.
func ResponseHeader(name, value string) Option {
	return func(d *Descriptor) {
		d.ResponseHeaders = append(d.ResponseHeaders, Header{Name: name, Value: value})
	}
}

// NoCache marks responses of the route as non-cacheable.
func NoCache() Option {
	return func(d *Descriptor) {
		d.DisableCache = true
	}
}

// New initializes a [Descriptor]. Validation is deferred to the
// registry so that all configuration mistakes surface together.
func New(method, path string, f Factory, opts ...Option) Descriptor {
	d := Descriptor{
		Method:  method,
		Path:    path,
		Factory: f,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// Contributor is implemented by anything contributing routes to a
// registry. A contributor must contribute at least one route.
type Contributor interface {
	Routes() []Descriptor
}

// ContributorFunc is a func variant of the [Contributor] interface.
type ContributorFunc func() []Descriptor

// Routes implements the [Contributor] interface.
func (f ContributorFunc) Routes() []Descriptor {
	return f()
}
