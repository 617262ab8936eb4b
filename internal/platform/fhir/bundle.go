package fhir

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bundle link relations used by searchset paging.
const (
	LinkFirst = "first"
	LinkPrev  = "prev"
	LinkNext  = "next"
	LinkLast  = "last"
)

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Total        int           `json:"total"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string        `json:"fullUrl,omitempty"`
	Resource interface{}   `json:"resource,omitempty"`
	Search   *BundleSearch `json:"search,omitempty"`
}

type BundleSearch struct {
	Mode string `json:"mode,omitempty"`
}

// NewSearchBundle creates an empty searchset Bundle.
func NewSearchBundle() *Bundle {
	now := time.Now().UTC()
	return &Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Timestamp:    &now,
	}
}

// AddEntry appends a match entry. fullUrl is derived from the resource's
// resourceType and id when the resource exposes them.
func (b *Bundle) AddEntry(resource interface{}) {
	b.Entry = append(b.Entry, BundleEntry{
		FullURL:  extractFullURL(resource),
		Resource: resource,
		Search:   &BundleSearch{Mode: "match"},
	})
}

// AddLink appends a navigation link.
func (b *Bundle) AddLink(relation, url string) {
	b.Link = append(b.Link, BundleLink{Relation: relation, URL: url})
}

// GetLink returns the first link with the given relation.
func (b *Bundle) GetLink(relation string) (BundleLink, bool) {
	for _, l := range b.Link {
		if l.Relation == relation {
			return l, true
		}
	}
	return BundleLink{}, false
}

// SetTotal records the total number of matches, independent of paging.
func (b *Bundle) SetTotal(total int) {
	b.Total = total
}

// Resources returns the entry resources in order.
func (b *Bundle) Resources() []interface{} {
	out := make([]interface{}, len(b.Entry))
	for i, e := range b.Entry {
		out[i] = e.Resource
	}
	return out
}

// Identified is implemented by resources that know their own type and id.
type Identified interface {
	GetResourceType() string
	GetID() string
}

// extractFullURL attempts to build a fullUrl from a resource's resourceType and id.
func extractFullURL(r interface{}) string {
	if ir, ok := r.(Identified); ok {
		if ir.GetResourceType() != "" && ir.GetID() != "" {
			return FormatReference(ir.GetResourceType(), ir.GetID())
		}
		return ""
	}
	m, ok := toMap(r)
	if !ok {
		return ""
	}
	rt, _ := m["resourceType"].(string)
	id, _ := m["id"].(string)
	if rt != "" && id != "" {
		return FormatReference(rt, id)
	}
	return ""
}

// toMap converts an interface{} to map[string]interface{} if possible.
func toMap(v interface{}) (map[string]interface{}, bool) {
	switch val := v.(type) {
	case map[string]interface{}:
		return val, true
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		var m map[string]interface{}
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, false
		}
		return m, true
	}
}

// FormatReference creates a FHIR reference string.
func FormatReference(resourceType, id string) string {
	return fmt.Sprintf("%s/%s", resourceType, id)
}
