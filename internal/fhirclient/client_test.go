package fhirclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piqitt/piqi/internal/platform/fhir"
)

func testBundle() *fhir.Bundle {
	return &fhir.Bundle{
		ResourceType: "Bundle",
		Type:         "message",
		Entry: []fhir.BundleEntry{
			{Resource: map[string]interface{}{
				"resourceType": "Patient",
				"id":           "pat-1",
				"meta":         map[string]interface{}{"versionId": "1"},
				"gender":       "female",
			}},
			{Resource: map[string]interface{}{
				"resourceType": "MessageHeader",
			}},
		},
	}
}

func TestToTransaction_FiltersEntriesWithoutIdentity(t *testing.T) {
	txn := ToTransaction(testBundle())
	require.Len(t, txn.Entry, 1)
	assert.Equal(t, "PUT", txn.Entry[0].Request.Method)
	assert.Equal(t, "Patient/pat-1", txn.Entry[0].Request.URL)
	_, hasMeta := txn.Entry[0].Resource["meta"]
	assert.False(t, hasMeta)
}

func TestPush_Success(t *testing.T) {
	var receivedAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		assert.Equal(t, "application/fhir+json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"resourceType": "Bundle", "type": "transaction-response"})
	}))
	defer server.Close()

	client := New(server.URL, Auth{BasicUser: "user", BasicPass: "pass"})
	result, err := client.Push(context.Background(), testBundle())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.NotEmpty(t, receivedAuth)
}

func TestPush_ErrorStatusReturnsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"resourceType": "OperationOutcome"})
	}))
	defer server.Close()

	client := New(server.URL, Auth{})
	_, err := client.Push(context.Background(), testBundle())
	require.Error(t, err)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusBadRequest, transportErr.StatusCode)
}

func TestPush_TransportFailure(t *testing.T) {
	client := New("http://127.0.0.1:0", Auth{})
	_, err := client.Push(context.Background(), testBundle())
	require.Error(t, err)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}
