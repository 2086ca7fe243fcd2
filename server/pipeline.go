// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/TechEmpower/tfb-status-sub003/internal/noop"
	"github.com/TechEmpower/tfb-status-sub003/internal/try"
)

// Pipeline wraps a handler with the behaviour every request gets
// regardless of which route it resolves to: the shutdown gate, access
// logging, and panic capture. Handlers below the pipeline run in the
// ordinary one-goroutine-per-request blocking model of net/http, so
// they may read and write synchronously without extra ceremony.
type Pipeline struct {
	next http.Handler
	log  *slog.Logger
	gate gate
}

// NewPipeline initializes a [Pipeline] around next. A nil logger
// discards all records.
func NewPipeline(next http.Handler, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.New(noop.LogHandler{})
	}
	return &Pipeline{
		next: next,
		log:  log,
	}
}

// Close closes the shutdown gate. New requests are rejected with
// 503 Service Unavailable; requests already admitted keep running.
func (p *Pipeline) Close() {
	p.gate.close()
}

// Open reopens the shutdown gate so requests are admitted again. A
// server restarted after a stop calls this before serving.
func (p *Pipeline) Open() {
	p.gate.open()
}

// Drain blocks until all admitted requests have completed or the
// context is done.
func (p *Pipeline) Drain(ctx context.Context) error {
	return p.gate.drain(ctx)
}

// ServeHTTP implements the [http.Handler] interface.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !p.gate.enter() {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	defer p.gate.leave()

	sw := &statusWriter{ResponseWriter: w}
	start := time.Now()

	defer func() {
		if rvr := recover(); rvr != nil {
			perr := try.PanicError{Value: rvr}
			p.log.LogAttrs(
				r.Context(),
				slog.LevelError,
				"handler panicked",
				slog.String("method", r.Method),
				slog.String("uri", r.URL.RequestURI()),
				slog.String("error", perr.Error()),
				slog.String("stack", string(debug.Stack())),
			)
			if !sw.wrote {
				http.Error(sw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}

		p.log.LogAttrs(
			r.Context(),
			slog.LevelInfo,
			"handled request",
			slog.String("method", r.Method),
			slog.String("uri", r.URL.RequestURI()),
			slog.String("proto", r.Proto),
			slog.Int("status", sw.status()),
			slog.String("reason", http.StatusText(sw.status())),
			slog.Int64("bytes_sent", sw.bytes),
			slog.Int64("response_time_ms", time.Since(start).Milliseconds()),
		)
	}()

	p.next.ServeHTTP(sw, r)
}

// statusWriter captures the status code and body size written by the
// handler chain so they can be logged after completion.
type statusWriter struct {
	http.ResponseWriter

	wrote      bool
	statusCode int
	bytes      int64
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wrote {
		w.statusCode = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.statusCode = http.StatusOK
		w.wrote = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

// Unwrap returns the underlying ResponseWriter for use with
// http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) status() int {
	if !w.wrote {
		return http.StatusOK
	}
	return w.statusCode
}
