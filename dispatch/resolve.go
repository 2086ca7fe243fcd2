// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package dispatch

import (
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/TechEmpower/tfb-status-sub003/route"
)

var errNilHandler = errors.New("handler factory returned nil handler")

// resolver defers handler construction until a request has fully
// matched a route. Shared handlers are constructed at most once and
// reused; per-request handlers are constructed per call and disposed
// of via the release func returned by resolve.
type resolver struct {
	scope   route.Scope
	factory route.Factory

	once      sync.Once
	shared    http.Handler
	sharedErr error
}

func newResolver(d route.Descriptor) *resolver {
	return &resolver{
		scope:   d.Scope,
		factory: d.Factory,
	}
}

func noopRelease() error { return nil }

// resolve returns the handler instance for one request along with a
// release func. The release func must be called when the request
// completes; it disposes of per-request instances at most once.
func (r *resolver) resolve() (http.Handler, func() error, error) {
	if r.scope == route.ScopeShared {
		r.once.Do(func() {
			r.shared, r.sharedErr = r.factory()
			if r.sharedErr == nil && r.shared == nil {
				r.sharedErr = errNilHandler
			}
		})
		return r.shared, noopRelease, r.sharedErr
	}

	h, err := r.factory()
	if err != nil {
		return nil, noopRelease, err
	}
	if h == nil {
		return nil, noopRelease, errNilHandler
	}

	c, ok := h.(io.Closer)
	if !ok {
		return h, noopRelease, nil
	}

	var releaseOnce sync.Once
	release := func() error {
		var err error
		releaseOnce.Do(func() {
			err = c.Close()
		})
		return err
	}
	return h, release, nil
}
