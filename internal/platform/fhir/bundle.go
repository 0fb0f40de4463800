package fhir

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bundle represents a FHIR Bundle resource. The pipeline only ever produces
// "message" bundles (one per converted HL7 message) and "transaction" bundles
// (built by internal/fhirclient for upload), so the searchset/history
// bookkeeping a REST server needs is not modeled here.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
	Meta         *BundleMeta   `json:"meta,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

// BundleMeta carries the ingestion provenance tags the orchestrator stamps
// onto a converted bundle (source file, message index, HL7 message type).
type BundleMeta struct {
	Tag []Coding `json:"tag,omitempty"`
}

// BundleEntry holds one resource in a Bundle. Resource is kept as a generic
// map rather than json.RawMessage: builders in internal/fhirconv hand back
// map[string]interface{} envelopes and the assembler never needs to treat
// them as opaque bytes before the final marshal.
type BundleEntry struct {
	FullURL  string                 `json:"fullUrl,omitempty"`
	Resource map[string]interface{} `json:"resource,omitempty"`
	Request  *BundleRequest         `json:"request,omitempty"`
	Response *BundleResponse        `json:"response,omitempty"`
}

type BundleRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

type BundleResponse struct {
	Status       string      `json:"status"`
	Location     string      `json:"location,omitempty"`
	LastModified *time.Time  `json:"lastModified,omitempty"`
	Outcome      interface{} `json:"outcome,omitempty"`
}

// NewMessageBundle wraps entries in a "message" type Bundle, the shape the
// HL7 converter produces: a MessageHeader entry followed by the resources it
// references, in assembly order.
func NewMessageBundle(id string, timestamp time.Time, entries []BundleEntry) *Bundle {
	return &Bundle{
		ResourceType: "Bundle",
		ID:           id,
		Type:         "message",
		Timestamp:    &timestamp,
		Entry:        entries,
	}
}

// FormatReference creates a FHIR reference string, e.g. "Patient/abc-123".
func FormatReference(resourceType, id string) string {
	return fmt.Sprintf("%s/%s", resourceType, id)
}

// Clone deep-copies a Bundle via JSON round-trip. The annotator is the only
// component allowed to mutate a bundle, and it does so on a caller-provided
// clone so the evaluator's read of the original is never disturbed.
func (b *Bundle) Clone() (*Bundle, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("fhir: clone bundle: marshal: %w", err)
	}
	var out Bundle
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("fhir: clone bundle: unmarshal: %w", err)
	}
	return &out, nil
}

// AddEntry appends a new entry to the bundle, used by the annotator to embed
// the PIQI Observation.
func (b *Bundle) AddEntry(e BundleEntry) {
	b.Entry = append(b.Entry, e)
}

// ResourcesOfType returns the resource maps of every entry whose
// resourceType matches rt, in bundle order.
func (b *Bundle) ResourcesOfType(rt string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, e := range b.Entry {
		if e.Resource == nil {
			continue
		}
		if t, _ := e.Resource["resourceType"].(string); t == rt {
			out = append(out, e.Resource)
		}
	}
	return out
}
