package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/campusaid/aidmap/api"
)

// TestOpenAPIDocument validates the OpenAPI document and checks every route is described.
func TestOpenAPIDocument(t *testing.T) {
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	doc, err := loader.LoadFromData(api.OpenAPI)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI document: %v", err)
	}

	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI validation failed: %v", err)
	}

	// Check that key paths exist
	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/requests",
		"/v1/requests/{id}",
		"/v1/requests/{id}/cancel",
		"/v1/map/clusters",
		"/v1/map/focus",
		"/v1/map/radius",
		"/graphql",
	}

	for _, path := range expectedPaths {
		if item := doc.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found in doc", path)
		}
	}

	// Verify key schemas exist
	expectedSchemas := []string{
		"GeoPoint",
		"Request",
		"CreateRequest",
		"RequestPage",
		"Marker",
		"ClusterView",
		"CameraTarget",
		"RadiusInfo",
		"APIError",
		"Pagination",
	}

	for _, schema := range expectedSchemas {
		if doc.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	t.Logf("OpenAPI document valid: %d paths, %d schemas", len(doc.Paths.Map()), len(doc.Components.Schemas))
}

// TestOpenAPIInfo verifies document metadata.
func TestOpenAPIInfo(t *testing.T) {
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	doc, err := loader.LoadFromData(api.OpenAPI)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI document: %v", err)
	}

	if doc.Info.Title != "AidMap API" {
		t.Errorf("expected title 'AidMap API', got %q", doc.Info.Title)
	}

	if doc.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", doc.Info.Version)
	}

	if doc.Info.Description == "" {
		t.Error("expected non-empty description")
	}

	if len(doc.Servers) == 0 {
		t.Error("expected at least one server")
	}

	t.Logf("OpenAPI Info: %s v%s @ %s", doc.Info.Title, doc.Info.Version, doc.Servers[0].URL)
}

// TestDocsRoutes checks the served forms of the document agree.
func TestDocsRoutes(t *testing.T) {
	app := setupApp(makeDeps(nil))

	resp, _ := app.Test(httptest.NewRequest("GET", "/docs", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("/docs: expected 200, got %d", resp.StatusCode)
	}
	if page := string(readBody(t, resp.Body)); !strings.Contains(page, "<title>AidMap API 1.0.0 · Swagger UI</title>") {
		t.Errorf("/docs: title not taken from document")
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/docs/openapi.yaml", nil), -1)
	if resp.StatusCode != 200 || string(readBody(t, resp.Body)) != string(api.OpenAPI) {
		t.Errorf("/docs/openapi.yaml: expected the embedded document, status %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/docs/openapi.json", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("/docs/openapi.json: expected 200, got %d", resp.StatusCode)
	}
	var doc struct {
		Info  struct{ Title string } `json:"info"`
		Paths map[string]any         `json:"paths"`
	}
	if err := json.Unmarshal(readBody(t, resp.Body), &doc); err != nil {
		t.Fatalf("decode openapi.json: %v", err)
	}
	if doc.Info.Title != "AidMap API" || doc.Paths["/v1/map/clusters"] == nil {
		t.Errorf("unexpected JSON document: title %q, %d paths", doc.Info.Title, len(doc.Paths))
	}
}
