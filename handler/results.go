// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package handler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/TechEmpower/tfb-status-sub003/dispatch"
	"github.com/TechEmpower/tfb-status-sub003/internal/noop"
	"github.com/TechEmpower/tfb-status-sub003/route"
	"github.com/TechEmpower/tfb-status-sub003/store"
)

var resultsTemplate = template.Must(template.New("results").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{ .Name }}</title>
</head>
<body>
  <h1>{{ .Name }}</h1>
  <p>Environment: {{ .Environment }}</p>
  <p>Uploaded: {{ .UploadedAt.Format "2006-01-02 15:04:05 MST" }}</p>
  {{- if .Completed }}
  <h2>Completed frameworks</h2>
  <table>
    <tr><th>Framework</th><th>Completed at</th></tr>
    {{- range $fw, $ts := .Completed }}
    <tr><td>{{ $fw }}</td><td>{{ $ts }}</td></tr>
    {{- end }}
  </table>
  {{- end }}
  <p><a href="/raw/{{ .UUID }}/results.json">raw results</a></p>
</body>
</html>
`))

// Results serves a single run's details. The same handler instance is
// registered once per representation and branches on the matched route.
type Results struct {
	store *store.Store
	log   *slog.Logger
}

// ResultsOption represents configurable attributes of [Results].
type ResultsOption func(*Results)

// ResultsLogHandler configures the logging sink.
func ResultsLogHandler(h slog.Handler) ResultsOption {
	return func(rs *Results) {
		rs.log = slog.New(h)
	}
}

// NewResults initializes a [Results].
func NewResults(s *store.Store, opts ...ResultsOption) *Results {
	h := &Results{
		store: s,
		log:   slog.New(noop.LogHandler{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes implements the [route.Contributor] interface.
func (h *Results) Routes() []route.Descriptor {
	return []route.Descriptor{
		route.New(
			http.MethodGet,
			"/results/{uuid}",
			route.SharedHandler(h),
			route.Produces("application/json"),
		),
		route.New(
			http.MethodGet,
			"/results/{uuid}",
			route.SharedHandler(h),
			route.Produces("text/html"),
		),
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *Results) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	uuid := dispatch.PathValue(r, "uuid")

	meta, err := h.store.Meta(uuid)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such run")
		return
	}
	if err != nil {
		h.log.LogAttrs(
			r.Context(),
			slog.LevelError,
			"failed to read run",
			slog.String("uuid", uuid),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	m, ok := dispatch.FromContext(r.Context())
	if ok && m.Route.Produces == "text/html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err = resultsTemplate.Execute(w, meta)
		if err != nil {
			h.log.LogAttrs(
				r.Context(),
				slog.LevelError,
				"failed to render results page",
				slog.String("uuid", uuid),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	writeJSON(w, http.StatusOK, meta)
}
