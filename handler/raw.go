// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"

	"github.com/TechEmpower/tfb-status-sub003/dispatch"
	"github.com/TechEmpower/tfb-status-sub003/internal/noop"
	"github.com/TechEmpower/tfb-status-sub003/route"
	"github.com/TechEmpower/tfb-status-sub003/store"
)

// Raw serves stored run artifacts verbatim.
type Raw struct {
	store *store.Store
	log   *slog.Logger
}

// RawOption represents configurable attributes of [Raw].
type RawOption func(*Raw)

// RawLogHandler configures the logging sink.
func RawLogHandler(h slog.Handler) RawOption {
	return func(rw *Raw) {
		rw.log = slog.New(h)
	}
}

// NewRaw initializes a [Raw].
func NewRaw(s *store.Store, opts ...RawOption) *Raw {
	h := &Raw{
		store: s,
		log:   slog.New(noop.LogHandler{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes implements the [route.Contributor] interface.
func (h *Raw) Routes() []route.Descriptor {
	return []route.Descriptor{
		route.New(
			http.MethodGet,
			"/raw/{uuid}/*",
			route.SharedHandler(h),
		),
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *Raw) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	uuid := dispatch.PathValue(r, "uuid")
	rel := dispatch.Wildcard(r)

	f, err := h.store.Open(uuid, rel)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.LogAttrs(
			r.Context(),
			slog.LevelError,
			"failed to open artifact",
			slog.String("uuid", uuid),
			slog.String("path", rel),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	if ct := mime.TypeByExtension(path.Ext(rel)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	_, err = io.Copy(w, f)
	if err != nil {
		h.log.LogAttrs(
			r.Context(),
			slog.LevelWarn,
			"failed to write artifact response",
			slog.String("uuid", uuid),
			slog.String("path", rel),
			slog.String("error", err.Error()),
		)
	}
}
