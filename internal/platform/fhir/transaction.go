package fhir

// BundleEntryRequest represents the request details for an entry in a
// transaction Bundle.
type BundleEntryRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// TransactionEntry is a single entry of a transaction Bundle being submitted
// to a FHIR server: a resource paired with the PUT (update) request that
// stores it at its own assigned id.
type TransactionEntry struct {
	FullURL  string                 `json:"fullUrl,omitempty"`
	Resource map[string]interface{} `json:"resource,omitempty"`
	Request  BundleEntryRequest     `json:"request"`
}

// TransactionBundle is a Bundle of type "transaction" ready to POST to a
// FHIR server's base endpoint.
type TransactionBundle struct {
	ResourceType string             `json:"resourceType"`
	Type         string             `json:"type"`
	Entry        []TransactionEntry `json:"entry,omitempty"`
}

// NewTransactionBundle wraps entries into a transaction Bundle.
func NewTransactionBundle(entries []TransactionEntry) *TransactionBundle {
	return &TransactionBundle{
		ResourceType: "Bundle",
		Type:         "transaction",
		Entry:        entries,
	}
}

// ToTransactionEntry converts a message-bundle entry into a transaction
// entry that PUTs the resource to its own id, stripping the bookkeeping
// fields (meta, text) a server would otherwise reject or recompute.
func ToTransactionEntry(e BundleEntry) TransactionEntry {
	resource := stripServerAssignedFields(e.Resource)
	rt, _ := resource["resourceType"].(string)
	id, _ := resource["id"].(string)
	url := FormatReference(rt, id)

	return TransactionEntry{
		FullURL:  "urn:uuid:" + id,
		Resource: resource,
		Request: BundleEntryRequest{
			Method: "PUT",
			URL:    url,
		},
	}
}

// stripServerAssignedFields removes the "meta" and "text" elements a FHIR
// server assigns or derives on its own, matching the reference pipeline's
// behavior before pushing a transaction upstream.
func stripServerAssignedFields(resource map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(resource))
	for k, v := range resource {
		if k == "meta" || k == "text" {
			continue
		}
		out[k] = v
	}
	return out
}
