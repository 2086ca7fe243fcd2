// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package route

import (
	"fmt"
	"strings"
)

// Entry is a validated descriptor along with its parsed template and
// media type patterns, ready for dispatch.
type Entry struct {
	Descriptor Descriptor
	Template   Template
	Consumes   MediaType
	Produces   MediaType
}

// Registry holds the full, validated set of routes contributed by the
// application. A registry is immutable once constructed and safe for
// concurrent use.
type Registry struct {
	entries []Entry
}

// InvalidRouteError occurs when a single descriptor is structurally
// invalid: unparseable template or media type, bad method token, or a
// nil handler factory.
type InvalidRouteError struct {
	Method string
	Path   string
	Cause  error
}

// Error implements the error interface.
func (e InvalidRouteError) Error() string {
	return fmt.Sprintf("invalid route %s %s: %s", e.Method, e.Path, e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e InvalidRouteError) Unwrap() error {
	return e.Cause
}

// EmptyContributorError occurs when a contributor declares routes but
// contributes none.
type EmptyContributorError struct {
	Contributor string
}

// Error implements the error interface.
func (e EmptyContributorError) Error() string {
	return fmt.Sprintf("contributor %s contributed zero routes", e.Contributor)
}

// DuplicateRouteError occurs when two descriptors share the same
// (path, method, consumes, produces) tuple.
type DuplicateRouteError struct {
	Method   string
	Path     string
	Consumes string
	Produces string
}

// Error implements the error interface.
func (e DuplicateRouteError) Error() string {
	return fmt.Sprintf(
		"duplicate route %s %s (consumes %s, produces %s)",
		e.Method, e.Path, e.Consumes, e.Produces,
	)
}

// AmbiguousTemplateError occurs when two templates normalize to the
// same shape but spell their variables differently. Such templates are
// indistinguishable at match time.
type AmbiguousTemplateError struct {
	Existing    string
	Conflicting string
}

// Error implements the error interface.
func (e AmbiguousTemplateError) Error() string {
	return fmt.Sprintf(
		"path templates %q and %q are indistinguishable at match time",
		e.Existing, e.Conflicting,
	)
}

// MethodConflictError occurs when a wildcard-method route and a
// method-specific route are both registered on the same path.
type MethodConflictError struct {
	Path   string
	Method string
}

// Error implements the error interface.
func (e MethodConflictError) Error() string {
	return fmt.Sprintf(
		"path %s registers both the wildcard method and %s",
		e.Path, e.Method,
	)
}

// NewRegistry collects the routes of every contributor and validates
// them as a whole. Any violation fails construction; there is no
// partially valid registry.
func NewRegistry(contributors ...Contributor) (*Registry, error) {
	reg := &Registry{}

	type tupleKey struct {
		shape    string
		method   string
		consumes string
		produces string
	}
	seen := make(map[tupleKey]struct{})
	shapeVars := make(map[string]string)
	shapeMethods := make(map[string]map[string]struct{})

	for _, c := range contributors {
		routes := c.Routes()
		if len(routes) == 0 {
			return nil, EmptyContributorError{Contributor: fmt.Sprintf("%T", c)}
		}

		for _, d := range routes {
			entry, err := validateRoute(d)
			if err != nil {
				return nil, err
			}

			shape := entry.Template.Shape()
			vars := strings.Join(entry.Template.Vars(), ",")
			if existing, ok := shapeVars[shape]; ok && existing != vars {
				return nil, AmbiguousTemplateError{
					Existing:    shapedRaw(reg.entries, shape),
					Conflicting: d.Path,
				}
			}
			shapeVars[shape] = vars

			key := tupleKey{
				shape:    shape,
				method:   d.Method,
				consumes: entry.Consumes.String(),
				produces: entry.Produces.String(),
			}
			if _, ok := seen[key]; ok {
				return nil, DuplicateRouteError{
					Method:   d.Method,
					Path:     d.Path,
					Consumes: entry.Consumes.String(),
					Produces: entry.Produces.String(),
				}
			}
			seen[key] = struct{}{}

			methods := shapeMethods[shape]
			if methods == nil {
				methods = make(map[string]struct{})
				shapeMethods[shape] = methods
			}
			if err := checkMethodConflict(methods, d); err != nil {
				return nil, err
			}
			methods[d.Method] = struct{}{}

			reg.entries = append(reg.entries, entry)
		}
	}
	return reg, nil
}

func validateRoute(d Descriptor) (Entry, error) {
	if d.Factory == nil {
		return Entry{}, InvalidRouteError{
			Method: d.Method,
			Path:   d.Path,
			Cause:  fmt.Errorf("nil handler factory"),
		}
	}
	if !validMethod(d.Method) {
		return Entry{}, InvalidRouteError{
			Method: d.Method,
			Path:   d.Path,
			Cause:  fmt.Errorf("invalid method token %q", d.Method),
		}
	}

	tmpl, err := ParseTemplate(d.Path)
	if err != nil {
		return Entry{}, InvalidRouteError{Method: d.Method, Path: d.Path, Cause: err}
	}
	consumes, err := ParseMediaType(d.Consumes)
	if err != nil {
		return Entry{}, InvalidRouteError{Method: d.Method, Path: d.Path, Cause: err}
	}
	produces, err := ParseMediaType(d.Produces)
	if err != nil {
		return Entry{}, InvalidRouteError{Method: d.Method, Path: d.Path, Cause: err}
	}

	return Entry{
		Descriptor: d,
		Template:   tmpl,
		Consumes:   consumes,
		Produces:   produces,
	}, nil
}

func validMethod(method string) bool {
	if method == MethodAny {
		return true
	}
	if method == "" {
		return false
	}
	for _, r := range method {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func checkMethodConflict(methods map[string]struct{}, d Descriptor) error {
	if d.Method == MethodAny {
		for m := range methods {
			if m != MethodAny {
				return MethodConflictError{Path: d.Path, Method: m}
			}
		}
		return nil
	}
	if _, ok := methods[MethodAny]; ok {
		return MethodConflictError{Path: d.Path, Method: d.Method}
	}
	return nil
}

func shapedRaw(entries []Entry, shape string) string {
	for _, e := range entries {
		if e.Template.Shape() == shape {
			return e.Descriptor.Path
		}
	}
	return shape
}

// Entries returns the validated entries in registration order.
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries
}

// Len returns the number of registered routes.
func (r *Registry) Len() int {
	return len(r.entries)
}
