package http

import (
	"net/http"
	"sort"
	"strings"

	"github.com/aretw0/rux"
	"github.com/aretw0/rux/pkg/schema"
	"github.com/getkin/kin-openapi/openapi3"
)

// OpenAPI describes the HTTP surface of engine. Every store root becomes a
// component schema built from its field types, and the Store schema maps root
// names to them.
func OpenAPI(engine Engine) (*openapi3.T, error) {
	schemas, err := engine.Schema()
	if err != nil {
		return nil, err
	}
	roots, err := engine.Roots()
	if err != nil {
		return nil, err
	}

	doc := &openapi3.T{
		OpenAPI:    "3.0.3",
		Info:       &openapi3.Info{Title: "rux", Version: strings.TrimSpace(rux.Version)},
		Paths:      openapi3.NewPaths(),
		Components: &openapi3.Components{Schemas: openapi3.Schemas{}},
	}

	store := openapi3.NewObjectSchema()
	for _, root := range roots {
		ref := componentRef(root, sliceSchema(schemas[root]))
		doc.Components.Schemas[root] = &openapi3.SchemaRef{Value: ref.Value}
		store.WithPropertyRef(root, ref)
	}
	doc.Components.Schemas["Store"] = &openapi3.SchemaRef{Value: store}
	storeRef := componentRef("Store", store)

	value := openapi3.NewObjectSchema().WithProperty("value", openapi3.NewSchema())
	value.Required = []string{"value"}
	stateValue := openapi3.NewObjectSchema().
		WithProperty("path", openapi3.NewStringSchema()).
		WithProperty("value", openapi3.NewSchema())
	payload := openapi3.NewObjectSchema().WithProperty("payload", openapi3.NewSchema())
	snapshotID := openapi3.NewObjectSchema().WithProperty("id", openapi3.NewStringSchema())
	snapshotList := openapi3.NewObjectSchema().
		WithProperty("snapshots", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()))

	add := func(method, path, summary string, status int, body, resp *openapi3.SchemaRef, params ...string) {
		op := openapi3.NewOperation()
		op.Summary = summary
		for _, p := range params {
			op.AddParameter(openapi3.NewPathParameter(p).WithSchema(openapi3.NewStringSchema()))
		}
		for _, p := range queryParams[path] {
			op.AddParameter(openapi3.NewQueryParameter(p).WithSchema(openapi3.NewStringSchema()))
		}
		if body != nil {
			op.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithJSONSchemaRef(body)}
		}
		ok := openapi3.NewResponse().WithDescription(http.StatusText(status))
		if resp != nil {
			ok.WithJSONSchemaRef(resp)
		}
		op.AddResponse(status, ok)
		op.AddResponse(0, openapi3.NewResponse().WithDescription("Error").
			WithJSONSchema(openapi3.NewObjectSchema().WithProperty("error", openapi3.NewStringSchema())))
		doc.AddOperation(path, method, op)
	}

	add(http.MethodGet, "/health", "Liveness check", http.StatusOK, nil, nil)
	add(http.MethodGet, "/slices", "Field schema of every root", http.StatusOK, nil, nil)
	add(http.MethodGet, "/store", "Dump the store", http.StatusOK, nil, storeRef)
	add(http.MethodPut, "/store", "Load a full dump", http.StatusNoContent, storeRef, nil)
	add(http.MethodGet, "/state/{slice}/{field}", "Read one field", http.StatusOK, nil, inline(stateValue), "slice", "field")
	add(http.MethodPut, "/state/{slice}/{field}", "Replace one field", http.StatusNoContent, inline(value), nil, "slice", "field")
	add(http.MethodPost, "/notify/{slice}/{field}", "Re-deliver a field to its subscribers", http.StatusNoContent, nil, nil, "slice", "field")
	add(http.MethodPost, "/dispatch/{slice}/{reducer}", "Run a reducer", http.StatusNoContent, inline(payload), nil, "slice", "reducer")
	add(http.MethodGet, "/events", "Server-Sent Events for the watched paths", http.StatusOK, nil, nil)
	add(http.MethodGet, "/ws", "WebSocket stream for the watched paths", http.StatusSwitchingProtocols, nil, nil)
	add(http.MethodGet, "/snapshots", "List snapshot IDs", http.StatusOK, nil, inline(snapshotList))
	add(http.MethodPost, "/snapshots", "Save a snapshot", http.StatusCreated, inline(snapshotID), inline(snapshotID))
	add(http.MethodPost, "/snapshots/{id}/restore", "Restore a snapshot", http.StatusNoContent, nil, nil, "id")
	return doc, nil
}

var queryParams = map[string][]string{
	"/events": {"path"},
	"/ws":     {"path"},
}

func inline(s *openapi3.Schema) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: s}
}

func componentRef(name string, s *openapi3.Schema) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Ref: "#/components/schemas/" + name, Value: s}
}

func sliceSchema(fields schema.Schema) *openapi3.Schema {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	obj := openapi3.NewObjectSchema()
	for _, name := range names {
		obj.WithProperty(name, typeSchema(fields[name].Name()))
	}
	if len(names) > 0 {
		obj.Required = names
	}
	return obj
}

// typeSchema maps a field type name onto JSON Schema. Custom and struct
// types are left open.
func typeSchema(name string) *openapi3.Schema {
	switch {
	case name == "int":
		return openapi3.NewIntegerSchema()
	case name == "float":
		return openapi3.NewFloat64Schema()
	case name == "string":
		return openapi3.NewStringSchema()
	case name == "bool":
		return openapi3.NewBoolSchema()
	case strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]"):
		return openapi3.NewArraySchema().WithItems(typeSchema(name[1 : len(name)-1]))
	default:
		s := openapi3.NewSchema()
		if name != "any" {
			s.Description = name
		}
		return s
	}
}

// GetOpenAPI handles GET /openapi.json.
func (s *Server) GetOpenAPI(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	doc, err := OpenAPI(s.engine)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, "GetOpenAPI", err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}
