package http_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

// findOpenAPIDoc locates the openapi.yaml file by walking up from the test directory.
func findOpenAPIDoc(t *testing.T) string {
	dir, _ := os.Getwd()

	// Look for api/openapi.yaml by going up directories
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "api", "openapi.yaml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}

	t.Fatalf("could not find api/openapi.yaml")
	return ""
}

// TestOpenAPIDocument checks that the OpenAPI document loads and validates.
func TestOpenAPIDocument(t *testing.T) {
	docPath := findOpenAPIDoc(t)
	data, err := os.ReadFile(docPath)
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}

	// Parse YAML
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI document: %v", err)
	}

	// Validate
	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI document validation failed: %v", err)
	}

	// Check that key paths exist
	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/auth/login",
		"/v1/auth/verify-2fa",
		"/v1/auth/refresh",
		"/v1/auth/me",
		"/v1/profile",
		"/v1/locations",
		"/v1/locations/search",
		"/v1/service-area",
		"/v1/wizards",
		"/v1/wizards/{id}",
		"/v1/wizards/{id}/advance",
		"/v1/wizards/{id}/jump",
		"/v1/reservations",
		"/v1/reservations/stats",
		"/v1/reservations/{id}",
		"/v1/reservations/{id}/cancel",
		"/v1/reservations/{id}/receipt",
		"/v1/activities",
		"/graphql",
	}

	for _, path := range expectedPaths {
		if item := doc.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found in document", path)
		}
	}

	// Verify key schemas exist
	expectedSchemas := []string{
		"Location",
		"LocationInput",
		"WizardUpdate",
		"WizardSnapshot",
		"Reservation",
		"ReservationList",
		"ReservationStats",
		"Activity",
		"LoginResult",
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
	docPath := findOpenAPIDoc(t)
	data, err := os.ReadFile(docPath)
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}

	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI document: %v", err)
	}

	if doc.Info.Title != "Taxi Portal API" {
		t.Errorf("expected title 'Taxi Portal API', got %q", doc.Info.Title)
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
