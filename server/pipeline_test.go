// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPipelineServeHTTP(t *testing.T) {
	t.Run("will reject the request with 503 Service Unavailable", func(t *testing.T) {
		t.Run("if the shutdown gate has been closed", func(t *testing.T) {
			invoked := false
			p := NewPipeline(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				invoked = true
			}), nil)
			p.Close()

			w := httptest.NewRecorder()
			p.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, http.StatusServiceUnavailable, w.Result().StatusCode)
			assert.False(t, invoked)
		})
	})

	t.Run("will admit requests again", func(t *testing.T) {
		t.Run("if the gate is reopened after closing", func(t *testing.T) {
			p := NewPipeline(statusHandler(http.StatusNoContent), nil)
			p.Close()
			p.Open()

			w := httptest.NewRecorder()
			p.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, http.StatusNoContent, w.Result().StatusCode)
		})
	})

	t.Run("will let admitted requests finish", func(t *testing.T) {
		t.Run("if the gate closes while a request is in flight", func(t *testing.T) {
			entered := make(chan struct{})
			release := make(chan struct{})

			p := NewPipeline(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				close(entered)
				<-release
				w.WriteHeader(http.StatusNoContent)
			}), nil)

			done := make(chan int, 1)
			go func() {
				w := httptest.NewRecorder()
				p.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
				done <- w.Result().StatusCode
			}()

			<-entered
			p.Close()
			close(release)

			select {
			case status := <-done:
				assert.Equal(t, http.StatusNoContent, status)
			case <-time.After(time.Second):
				t.Fatal("in-flight request never completed")
			}
		})
	})

	t.Run("will capture a handler panic", func(t *testing.T) {
		t.Run("if the handler panics before writing a response", func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(slog.NewTextHandler(&buf, nil))

			p := NewPipeline(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic("boom")
			}), log)

			w := httptest.NewRecorder()
			assert.NotPanics(t, func() {
				p.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/upload", nil))
			})

			assert.Equal(t, http.StatusInternalServerError, w.Result().StatusCode)
			assert.Contains(t, buf.String(), "handler panicked")
			assert.Contains(t, buf.String(), "boom")
		})

		t.Run("if the handler panics after writing a response", func(t *testing.T) {
			p := NewPipeline(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
				panic("boom")
			}), nil)

			w := httptest.NewRecorder()
			assert.NotPanics(t, func() {
				p.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			})

			// the status line is already on the wire; it must not be rewritten
			assert.Equal(t, http.StatusAccepted, w.Result().StatusCode)
		})
	})

	t.Run("will write an access log record", func(t *testing.T) {
		t.Run("if the request completes normally", func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(slog.NewTextHandler(&buf, nil))

			p := NewPipeline(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				io.WriteString(w, "created")
			}), log)

			w := httptest.NewRecorder()
			p.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", nil))

			s := buf.String()
			assert.Contains(t, s, "handled request")
			assert.Contains(t, s, "method=POST")
			assert.Contains(t, s, "uri=/upload")
			assert.Contains(t, s, "status=201")
			assert.Contains(t, s, "bytes_sent=7")
		})
	})
}

func TestPipelineDrain(t *testing.T) {
	t.Run("will return immediately", func(t *testing.T) {
		t.Run("if no requests are in flight", func(t *testing.T) {
			p := NewPipeline(http.NotFoundHandler(), nil)
			p.Close()

			err := p.Drain(context.Background())
			assert.Nil(t, err)
		})
	})

	t.Run("will block until in-flight requests complete", func(t *testing.T) {
		t.Run("if a request is admitted before the gate closes", func(t *testing.T) {
			entered := make(chan struct{})
			release := make(chan struct{})

			p := NewPipeline(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				close(entered)
				<-release
			}), nil)

			go func() {
				w := httptest.NewRecorder()
				p.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			}()

			<-entered
			p.Close()

			drained := make(chan error, 1)
			go func() {
				drained <- p.Drain(context.Background())
			}()

			select {
			case <-drained:
				t.Fatal("drain returned with a request still in flight")
			case <-time.After(50 * time.Millisecond):
			}

			close(release)

			select {
			case err := <-drained:
				assert.Nil(t, err)
			case <-time.After(time.Second):
				t.Fatal("drain never returned")
			}
		})
	})

	t.Run("will give up", func(t *testing.T) {
		t.Run("if the context is cancelled first", func(t *testing.T) {
			entered := make(chan struct{})
			release := make(chan struct{})
			defer close(release)

			p := NewPipeline(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				close(entered)
				<-release
			}), nil)

			go func() {
				w := httptest.NewRecorder()
				p.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			}()

			<-entered
			p.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err := p.Drain(ctx)
			assert.ErrorIs(t, err, context.Canceled)
		})
	})
}
