// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/TechEmpower/tfb-status-sub003/internal/noop"
	"github.com/TechEmpower/tfb-status-sub003/notify"
	"github.com/TechEmpower/tfb-status-sub003/route"
	"github.com/TechEmpower/tfb-status-sub003/store"
)

// maxUploadBytes bounds the size of an uploaded results document.
const maxUploadBytes = 64 << 20

// Upload accepts results documents. Its handlers are per-request
// scoped: each request gets its own spool file which is removed once
// the request completes, whether it succeeds, fails or panics.
type Upload struct {
	store    *store.Store
	notifier *notify.Notifier
	log      *slog.Logger
}

// UploadOption represents configurable attributes of [Upload].
type UploadOption func(*Upload)

// UploadLogHandler configures the logging sink.
func UploadLogHandler(h slog.Handler) UploadOption {
	return func(u *Upload) {
		u.log = slog.New(h)
	}
}

// NewUpload initializes an [Upload].
func NewUpload(s *store.Store, n *notify.Notifier, opts ...UploadOption) *Upload {
	u := &Upload{
		store:    s,
		notifier: n,
		log:      slog.New(noop.LogHandler{}),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Routes implements the [route.Contributor] interface.
func (u *Upload) Routes() []route.Descriptor {
	return []route.Descriptor{
		route.New(
			http.MethodPost,
			"/upload",
			u.newRequestHandler,
			route.Consumes("application/json"),
			route.Produces("application/json"),
			route.PerRequest(),
		),
	}
}

func (u *Upload) newRequestHandler() (http.Handler, error) {
	spool, err := os.CreateTemp("", "tfb-upload-*")
	if err != nil {
		return nil, err
	}
	return &uploadRequest{owner: u, spool: spool}, nil
}

type uploadRequest struct {
	owner *Upload
	spool *os.File
}

type uploadResponse struct {
	UUID string `json:"uuid"`
}

// ServeHTTP implements the http.Handler interface.
func (h *uploadRequest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
	_, err := io.Copy(h.spool, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	_, err = h.spool.Seek(0, io.SeekStart)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meta, err := h.owner.store.Save(h.spool)
	var invalidErr store.InvalidDocumentError
	if errors.As(err, &invalidErr) {
		writeError(w, http.StatusBadRequest, invalidErr.Error())
		return
	}
	if err != nil {
		h.owner.log.LogAttrs(
			r.Context(),
			slog.LevelError,
			"failed to store run",
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	// Notification failures never fail the upload.
	err = h.owner.notifier.RunComplete(r.Context(), meta)
	if err != nil {
		h.owner.log.LogAttrs(
			r.Context(),
			slog.LevelWarn,
			"failed to notify run completion",
			slog.String("uuid", meta.UUID),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, http.StatusCreated, uploadResponse{UUID: meta.UUID})
}

// Close implements the io.Closer interface. It removes the request's
// spool file.
func (h *uploadRequest) Close() error {
	name := h.spool.Name()
	err := h.spool.Close()
	rerr := os.Remove(name)
	if err != nil {
		return err
	}
	return rerr
}
