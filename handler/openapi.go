// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/TechEmpower/tfb-status-sub003/dispatch"
	"github.com/TechEmpower/tfb-status-sub003/route"

	"github.com/swaggest/openapi-go/openapi3"
	"gopkg.in/yaml.v3"
)

// OpenApi serves the OpenAPI schema derived from a validated route
// registry, as either JSON or YAML.
type OpenApi struct {
	spec *openapi3.Spec
}

// NewOpenApi initializes an [OpenApi] by walking the registry's
// entries. Wildcard-method routes are omitted since OpenAPI has no
// representation for them.
func NewOpenApi(reg *route.Registry, title, version string) *OpenApi {
	spec := &openapi3.Spec{
		Openapi: "3.0.3",
	}
	spec.Info.
		WithTitle(title).
		WithVersion(version)

	for _, e := range reg.Entries() {
		if e.Descriptor.Method == route.MethodAny {
			continue
		}

		pattern := strings.TrimSuffix(e.Template.String(), "/*")
		if pattern == "" {
			pattern = "/"
		}

		if spec.Paths.MapOfPathItemValues == nil {
			spec.Paths.MapOfPathItemValues = make(map[string]openapi3.PathItem)
		}
		pathItem, ok := spec.Paths.MapOfPathItemValues[pattern]
		if !ok {
			pathItem = openapi3.PathItem{
				MapOfOperationValues: make(map[string]openapi3.Operation),
			}
		}

		method := strings.ToLower(e.Descriptor.Method)
		op, ok := pathItem.MapOfOperationValues[method]
		if !ok {
			op = openapi3.Operation{}
			for _, v := range e.Template.Vars() {
				required := true
				op.Parameters = append(op.Parameters, openapi3.ParameterOrRef{
					Parameter: &openapi3.Parameter{
						Name:     v,
						In:       openapi3.ParameterInPath,
						Required: &required,
					},
				})
			}
		}

		if !e.Consumes.IsWildcard() {
			op.RequestBody = &openapi3.RequestBodyOrRef{
				RequestBody: &openapi3.RequestBody{
					Content: map[string]openapi3.MediaType{
						e.Consumes.String(): {},
					},
				},
			}
		}

		if op.Responses.MapOfResponseOrRefValues == nil {
			op.Responses.MapOfResponseOrRefValues = make(map[string]openapi3.ResponseOrRef)
		}
		resp := op.Responses.MapOfResponseOrRefValues["200"].Response
		if resp == nil {
			resp = &openapi3.Response{
				Description: http.StatusText(http.StatusOK),
			}
		}
		if !e.Produces.IsWildcard() {
			if resp.Content == nil {
				resp.Content = make(map[string]openapi3.MediaType)
			}
			resp.Content[e.Produces.String()] = openapi3.MediaType{}
		}
		op.Responses.MapOfResponseOrRefValues["200"] = openapi3.ResponseOrRef{
			Response: resp,
		}

		pathItem.MapOfOperationValues[method] = op
		spec.Paths.MapOfPathItemValues[pattern] = pathItem
	}

	return &OpenApi{spec: spec}
}

// Routes implements the [route.Contributor] interface.
func (h *OpenApi) Routes() []route.Descriptor {
	return []route.Descriptor{
		route.New(
			http.MethodGet,
			"/openapi.json",
			route.SharedHandler(h),
			route.Produces("application/json"),
		),
		route.New(
			http.MethodGet,
			"/openapi.yaml",
			route.SharedHandler(h),
			route.Produces("application/yaml"),
		),
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *OpenApi) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	marshal := json.Marshal
	contentType := "application/json"
	if m, ok := dispatch.FromContext(r.Context()); ok && m.Route.Path == "/openapi.yaml" {
		marshal = yaml.Marshal
		contentType = "application/yaml"
	}

	b, err := marshal(h.spec)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(b)
}
