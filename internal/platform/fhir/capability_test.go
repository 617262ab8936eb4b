package fhir

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestReadSearchCapability(t *testing.T) {
	res := ReadSearchCapability("Coverage", []CSSearchParam{{Name: "beneficiary", Type: "reference"}})

	if res.Type != "Coverage" {
		t.Errorf("expected type Coverage, got %s", res.Type)
	}
	codes := map[string]bool{}
	for _, i := range res.Interaction {
		codes[i.Code] = true
	}
	if len(codes) != 2 || !codes["read"] || !codes["search-type"] {
		t.Errorf("expected read and search-type only, got %v", res.Interaction)
	}
	if res.Versioning != "no-version" {
		t.Errorf("expected no-version, got %s", res.Versioning)
	}
}

func TestCapabilityHandler(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/fhir/metadata", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := CapabilityHandler("https://localhost:9094/fhir", ReadSearchCapability("Coverage", nil))
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var cs CapabilityStatement
	if err := json.Unmarshal(rec.Body.Bytes(), &cs); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if cs.ResourceType != "CapabilityStatement" {
		t.Errorf("expected CapabilityStatement, got %s", cs.ResourceType)
	}
	if len(cs.Rest) != 1 || len(cs.Rest[0].Resource) != 1 {
		t.Fatalf("expected one rest entry with one resource, got %+v", cs.Rest)
	}
	if cs.Rest[0].Resource[0].Type != "Coverage" {
		t.Errorf("expected Coverage, got %s", cs.Rest[0].Resource[0].Type)
	}
}
