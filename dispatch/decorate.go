// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package dispatch

import (
	"net/http"

	"github.com/TechEmpower/tfb-status-sub003/route"
)

// decorate wraps the terminal handler of a route with its declared
// response decorations: the cache-disabling decorator first, then one
// header-injection decorator per declared header, in declaration
// order, innermost first.
func decorate(h http.Handler, d route.Descriptor) http.Handler {
	if d.DisableCache {
		h = noCacheHandler{next: h}
	}
	for _, hdr := range d.ResponseHeaders {
		h = headerHandler{next: h, header: hdr}
	}
	return h
}

type noCacheHandler struct {
	next http.Handler
}

func (h noCacheHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	headers := w.Header()
	headers.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	headers.Set("Pragma", "no-cache")
	headers.Set("Expires", "0")
	h.next.ServeHTTP(w, r)
}

type headerHandler struct {
	next   http.Handler
	header route.Header
}

func (h headerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(h.header.Name, h.header.Value)
	h.next.ServeHTTP(w, r)
}
