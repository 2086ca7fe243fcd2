// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package handler

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/TechEmpower/tfb-status-sub003/internal/noop"
	"github.com/TechEmpower/tfb-status-sub003/route"
	"github.com/TechEmpower/tfb-status-sub003/store"
)

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>benchmark runs</title>
</head>
<body>
  <h1>Benchmark runs</h1>
  <table>
    <tr><th>Name</th><th>Environment</th><th>Uploaded</th></tr>
    {{- range .Runs }}
    <tr>
      <td><a href="/results/{{ .UUID }}">{{ .Name }}</a></td>
      <td>{{ .Environment }}</td>
      <td>{{ .UploadedAt.Format "2006-01-02 15:04:05 MST" }}</td>
    </tr>
    {{- end }}
  </table>
</body>
</html>
`))

// Home renders the landing page listing all stored runs.
type Home struct {
	store *store.Store
	log   *slog.Logger
}

// HomeOption represents configurable attributes of [Home].
type HomeOption func(*Home)

// HomeLogHandler configures the logging sink.
func HomeLogHandler(h slog.Handler) HomeOption {
	return func(hm *Home) {
		hm.log = slog.New(h)
	}
}

// NewHome initializes a [Home].
func NewHome(s *store.Store, opts ...HomeOption) *Home {
	h := &Home{
		store: s,
		log:   slog.New(noop.LogHandler{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes implements the [route.Contributor] interface.
func (h *Home) Routes() []route.Descriptor {
	return []route.Descriptor{
		route.New(
			http.MethodGet,
			"/",
			route.SharedHandler(h),
			route.Produces("text/html"),
			route.ResponseHeader("X-Frame-Options", "DENY"),
			route.NoCache(),
		),
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *Home) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.List()
	if err != nil {
		h.log.LogAttrs(
			r.Context(),
			slog.LevelError,
			"failed to list runs",
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = homeTemplate.Execute(w, struct{ Runs []store.Meta }{Runs: runs})
	if err != nil {
		h.log.LogAttrs(
			r.Context(),
			slog.LevelError,
			"failed to render home page",
			slog.String("error", err.Error()),
		)
	}
}
