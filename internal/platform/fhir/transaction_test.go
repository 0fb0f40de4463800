package fhir

import (
	"encoding/json"
	"testing"
)

func TestToTransactionEntry_StripsMetaAndText(t *testing.T) {
	entry := BundleEntry{
		FullURL: "Patient/pat-1",
		Resource: map[string]interface{}{
			"resourceType": "Patient",
			"id":           "pat-1",
			"meta":         map[string]interface{}{"versionId": "1"},
			"text":         map[string]interface{}{"status": "generated"},
			"gender":       "female",
		},
	}

	got := ToTransactionEntry(entry)

	if _, ok := got.Resource["meta"]; ok {
		t.Error("expected meta to be stripped")
	}
	if _, ok := got.Resource["text"]; ok {
		t.Error("expected text to be stripped")
	}
	if got.Resource["gender"] != "female" {
		t.Errorf("expected gender preserved, got %v", got.Resource["gender"])
	}
	if got.Request.Method != "PUT" {
		t.Errorf("expected method PUT, got %s", got.Request.Method)
	}
	if got.Request.URL != "Patient/pat-1" {
		t.Errorf("expected url Patient/pat-1, got %s", got.Request.URL)
	}
	if got.FullURL != "urn:uuid:pat-1" {
		t.Errorf("expected fullUrl urn:uuid:pat-1, got %s", got.FullURL)
	}
}

func TestNewTransactionBundle(t *testing.T) {
	entries := []TransactionEntry{
		ToTransactionEntry(BundleEntry{Resource: map[string]interface{}{"resourceType": "Patient", "id": "p1"}}),
		ToTransactionEntry(BundleEntry{Resource: map[string]interface{}{"resourceType": "Encounter", "id": "e1"}}),
	}

	b := NewTransactionBundle(entries)

	if b.ResourceType != "Bundle" {
		t.Errorf("expected resourceType Bundle, got %s", b.ResourceType)
	}
	if b.Type != "transaction" {
		t.Errorf("expected type transaction, got %s", b.Type)
	}
	if len(b.Entry) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(b.Entry))
	}
}

func TestTransactionBundle_JSONShape(t *testing.T) {
	b := NewTransactionBundle([]TransactionEntry{
		ToTransactionEntry(BundleEntry{Resource: map[string]interface{}{"resourceType": "Patient", "id": "p1"}}),
	})

	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if parsed["type"] != "transaction" {
		t.Errorf("expected type transaction, got %v", parsed["type"])
	}
	entries, ok := parsed["entry"].([]interface{})
	if !ok || len(entries) != 1 {
		t.Fatalf("expected 1 entry in JSON, got %v", parsed["entry"])
	}
	first := entries[0].(map[string]interface{})
	req := first["request"].(map[string]interface{})
	if req["method"] != "PUT" {
		t.Errorf("expected method PUT, got %v", req["method"])
	}
}
