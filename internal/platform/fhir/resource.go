package fhir

import (
	"strings"
	"time"
)

type Meta struct {
	VersionID   string     `json:"versionId,omitempty"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
	Profile     []string   `json:"profile,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

type Identifier struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

type Period struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

type Extension struct {
	URL                  string           `json:"url"`
	ValueString          string           `json:"valueString,omitempty"`
	ValueCode            string           `json:"valueCode,omitempty"`
	ValueCoding          *Coding          `json:"valueCoding,omitempty"`
	ValueIdentifier      *Identifier      `json:"valueIdentifier,omitempty"`
	ValueCodeableConcept *CodeableConcept `json:"valueCodeableConcept,omitempty"`
}

// IDType is a parsed logical id with an optional version component, as found
// in "Coverage/<id>/_history/<vid>".
type IDType struct {
	ResourceType string
	IDPart       string
	VersionPart  string
}

// NewIDType builds an IDType for resourceType/id with no version.
func NewIDType(resourceType, id string) *IDType {
	return &IDType{ResourceType: resourceType, IDPart: id}
}

// HasVersion reports whether a non-empty version component is present.
func (id *IDType) HasVersion() bool {
	return strings.TrimSpace(id.VersionPart) != ""
}

func (id *IDType) String() string {
	s := id.IDPart
	if id.ResourceType != "" {
		s = FormatReference(id.ResourceType, s)
	}
	if id.VersionPart != "" {
		s += "/_history/" + id.VersionPart
	}
	return s
}

// ReferenceParam is a reference-typed search parameter value such as
// "Patient/123" or "123".
type ReferenceParam struct {
	ResourceType string
	IDPart       string
}

// ParseReferenceParam splits a raw reference search value into its parts.
// Only the trailing id segment is significant for lookups.
func ParseReferenceParam(raw string) ReferenceParam {
	raw = strings.TrimSpace(raw)
	if i := strings.LastIndexByte(raw, '/'); i >= 0 {
		return ReferenceParam{ResourceType: raw[:i], IDPart: raw[i+1:]}
	}
	return ReferenceParam{IDPart: raw}
}

// OperationOutcome represents a FHIR OperationOutcome for errors.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string           `json:"severity"`
	Code        string           `json:"code"`
	Details     *CodeableConcept `json:"details,omitempty"`
	Diagnostics string           `json:"diagnostics,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{
				Severity:    severity,
				Code:        code,
				Diagnostics: diagnostics,
			},
		},
	}
}

func ErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeException, diagnostics)
}

func NotFoundOutcome(resourceType, id string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeNotFound, resourceType+"/"+id+" not found")
}
