// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package handler

import (
	"net/http"

	"github.com/TechEmpower/tfb-status-sub003/route"
)

type healthResponse struct {
	Status string `json:"status"`
}

// Health reports process liveness.
type Health struct{}

// NewHealth initializes a [Health].
func NewHealth() *Health {
	return &Health{}
}

// Routes implements the [route.Contributor] interface.
func (h *Health) Routes() []route.Descriptor {
	return []route.Descriptor{
		route.New(
			http.MethodGet,
			"/health",
			route.SharedHandler(h),
			route.Produces("application/json"),
			route.NoCache(),
		),
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
