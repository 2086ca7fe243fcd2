// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package dispatch resolves inbound requests against a validated route
// registry. Resolution is layered the way HTTP negotiation is layered:
// path first, then method, then request content type, then accepted
// response type, each level short-circuiting to its own terminal
// status code (404, 405, 415, 406).
package dispatch

import (
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"strings"

	"github.com/TechEmpower/tfb-status-sub003/internal/noop"
	"github.com/TechEmpower/tfb-status-sub003/route"
)

// TreeOption represents configurable attributes of a [Tree].
type TreeOption func(*Tree)

// LogHandler configures the logging sink used for handler
// construction and disposal failures.
func LogHandler(h slog.Handler) TreeOption {
	return func(t *Tree) {
		t.log = slog.New(h)
	}
}

// Tree is the dispatch structure built once from a validated
// [route.Registry]. It is immutable after construction and safe for
// concurrent use without locking.
//
// Overlapping path templates are tried most specific first: literal
// templates, then variable templates, then trailing-wildcard
// templates, preserving registration order within each class. When a
// request carries no Accept header, or a wildcard one, and several
// produces entries match, the first-registered entry wins.
type Tree struct {
	log   *slog.Logger
	paths []*pathNode
}

type pathNode struct {
	tmpl    route.Template
	methods map[string][]*treeEntry
}

type treeEntry struct {
	desc     route.Descriptor
	consumes route.MediaType
	produces route.MediaType
	handler  http.Handler
}

// NewTree builds a [Tree] from the given registry.
func NewTree(reg *route.Registry, opts ...TreeOption) *Tree {
	t := &Tree{
		log: slog.New(noop.LogHandler{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	nodes := make(map[string]*pathNode)
	for _, entry := range reg.Entries() {
		shape := entry.Template.Shape()
		node, ok := nodes[shape]
		if !ok {
			node = &pathNode{
				tmpl:    entry.Template,
				methods: make(map[string][]*treeEntry),
			}
			nodes[shape] = node
			t.paths = append(t.paths, node)
		}

		te := &treeEntry{
			desc:     entry.Descriptor,
			consumes: entry.Consumes,
			produces: entry.Produces,
		}
		te.handler = decorate(lazyServer{
			log:      t.log,
			desc:     entry.Descriptor,
			resolver: newResolver(entry.Descriptor),
		}, entry.Descriptor)

		node.methods[entry.Descriptor.Method] = append(node.methods[entry.Descriptor.Method], te)
	}

	sort.SliceStable(t.paths, func(i, j int) bool {
		return templateClass(t.paths[i].tmpl) < templateClass(t.paths[j].tmpl)
	})
	return t
}

func templateClass(tmpl route.Template) int {
	switch {
	case tmpl.Wildcard():
		return 2
	case tmpl.NumVars() > 0:
		return 1
	default:
		return 0
	}
}

// ServeHTTP implements the [http.Handler] interface.
func (t *Tree) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	node, params := t.matchPath(r.URL.Path)
	if node == nil {
		respondStatus(w, http.StatusNotFound)
		return
	}

	entries, ok := node.lookupMethod(r.Method)
	if !ok {
		switch r.Method {
		case http.MethodOptions:
			serveOptions(w, node)
		case http.MethodHead:
			getEntries, ok := node.lookupMethod(http.MethodGet)
			if !ok {
				respondMethodNotAllowed(w, node)
				return
			}
			entry, status := negotiate(getEntries, r)
			if entry == nil {
				respondStatus(w, status)
				return
			}
			serve(&headResponseWriter{ResponseWriter: w}, r, entry, params)
		default:
			respondMethodNotAllowed(w, node)
		}
		return
	}

	entry, status := negotiate(entries, r)
	if entry == nil {
		respondStatus(w, status)
		return
	}
	serve(w, r, entry, params)
}

func (t *Tree) matchPath(path string) (*pathNode, route.Params) {
	for _, node := range t.paths {
		params, ok := node.tmpl.Match(path)
		if ok {
			return node, params
		}
	}
	return nil, nil
}

func (n *pathNode) lookupMethod(method string) ([]*treeEntry, bool) {
	entries, ok := n.methods[method]
	if ok {
		return entries, true
	}
	entries, ok = n.methods[route.MethodAny]
	return entries, ok
}

// allowedMethods returns the methods a client may use against the
// node's path, including the two synthesized ones.
func (n *pathNode) allowedMethods() []string {
	set := map[string]struct{}{
		http.MethodOptions: {},
	}
	for method := range n.methods {
		set[method] = struct{}{}
	}
	if _, ok := n.methods[http.MethodGet]; ok {
		set[http.MethodHead] = struct{}{}
	}

	methods := make([]string, 0, len(set))
	for method := range set {
		methods = append(methods, method)
	}
	slices.Sort(methods)
	return methods
}

// negotiate selects the entry for a request from the method-level
// entries, applying the consumes level before the produces level.
// On failure it returns the terminal status code for the first level
// that had no match.
func negotiate(entries []*treeEntry, r *http.Request) (*treeEntry, int) {
	reqType, err := requestContentType(r)
	if err != nil {
		return nil, http.StatusUnsupportedMediaType
	}

	candidates := make([]*treeEntry, 0, len(entries))
	for _, e := range entries {
		if e.consumes.Includes(reqType) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil, http.StatusUnsupportedMediaType
	}

	ranges := acceptRanges(r)
	for _, e := range candidates {
		if ranges == nil {
			return e, 0
		}
		for _, mr := range ranges {
			if mr.Compatible(e.produces) {
				return e, 0
			}
		}
	}
	return nil, http.StatusNotAcceptable
}

// requestContentType parses the request's Content-Type header. An
// absent header is reported as the full wildcard, which only matches
// routes whose consumes pattern is itself a wildcard.
func requestContentType(r *http.Request) (route.MediaType, error) {
	v := r.Header.Get("Content-Type")
	if strings.TrimSpace(v) == "" {
		return route.AnyMediaType, nil
	}
	return route.ParseMediaType(v)
}

// acceptRanges parses the request's Accept header into media ranges.
// A nil return means the header was absent and anything is acceptable.
// Malformed ranges are skipped; a header with no well-formed ranges
// accepts nothing.
func acceptRanges(r *http.Request) []route.MediaType {
	v := r.Header.Get("Accept")
	if strings.TrimSpace(v) == "" {
		return nil
	}

	ranges := make([]route.MediaType, 0, 4)
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mt, err := route.ParseMediaType(part)
		if err != nil {
			continue
		}
		ranges = append(ranges, mt)
	}
	return ranges
}

func serve(w http.ResponseWriter, r *http.Request, e *treeEntry, params route.Params) {
	ctx := NewContext(r.Context(), &Match{
		Route:  e.desc,
		Params: params,
	})
	e.handler.ServeHTTP(w, r.WithContext(ctx))
}

// serveOptions answers an OPTIONS request for a path with no declared
// OPTIONS route. No handler of the path is invoked.
func serveOptions(w http.ResponseWriter, node *pathNode) {
	w.Header().Set("Allow", strings.Join(node.allowedMethods(), ", "))
	w.WriteHeader(http.StatusOK)
}

func respondMethodNotAllowed(w http.ResponseWriter, node *pathNode) {
	w.Header().Set("Allow", strings.Join(node.allowedMethods(), ", "))
	respondStatus(w, http.StatusMethodNotAllowed)
}

func respondStatus(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}

// lazyServer resolves the handler instance once a request has fully
// matched, and guarantees disposal of per-request instances when the
// request completes, whether it returned normally or panicked.
type lazyServer struct {
	log      *slog.Logger
	desc     route.Descriptor
	resolver *resolver
}

func (s lazyServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h, release, err := s.resolver.resolve()
	if err != nil {
		s.log.LogAttrs(
			r.Context(),
			slog.LevelError,
			"failed to construct handler",
			slog.String("method", r.Method),
			slog.String("uri", r.URL.RequestURI()),
			slog.String("route", s.desc.Path),
			slog.String("error", err.Error()),
		)
		respondStatus(w, http.StatusInternalServerError)
		return
	}
	defer func() {
		releaseErr := release()
		if releaseErr == nil {
			return
		}
		s.log.LogAttrs(
			r.Context(),
			slog.LevelError,
			"failed to dispose handler",
			slog.String("route", s.desc.Path),
			slog.String("error", releaseErr.Error()),
		)
	}()

	h.ServeHTTP(w, r)
}

// headResponseWriter discards the response body while passing status
// and headers through, which turns a GET execution into a HEAD one.
type headResponseWriter struct {
	http.ResponseWriter
}

func (w *headResponseWriter) Write(b []byte) (int, error) {
	return len(b), nil
}

// Unwrap returns the underlying ResponseWriter for use with
// http.ResponseController.
func (w *headResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
