// Package fhirclient wraps a converted message bundle as a FHIR transaction
// and POSTs it to a configured remote FHIR server, surfacing the HTTP
// status and parsed response body to the caller. There are no retries or
// idempotency tokens: failures are reported, never silently absorbed.
package fhirclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/piqitt/piqi/internal/platform/fhir"
)

const defaultTimeout = 30 * time.Second

// Auth selects the optional HTTP authentication scheme for outbound
// transaction POSTs.
type Auth struct {
	BasicUser   string
	BasicPass   string
	BearerToken string
}

func (a Auth) apply(req *http.Request) {
	if a.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.BearerToken)
		return
	}
	if a.BasicUser != "" || a.BasicPass != "" {
		req.SetBasicAuth(a.BasicUser, a.BasicPass)
	}
}

// Client posts transaction bundles to a FHIR server's base endpoint.
type Client struct {
	BaseURL    string
	Auth       Auth
	HTTPClient *http.Client
}

// New builds a Client with the spec's default 30-second per-request
// timeout.
func New(baseURL string, auth Auth) *Client {
	return &Client{
		BaseURL:    baseURL,
		Auth:       auth,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// TransportError wraps a failed transaction POST: a status of 400 or above
// with a parsed body, or a transport-level failure (timeout, connection
// refused).
type TransportError struct {
	StatusCode int
	Body       interface{}
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fhirclient: transaction post failed: %v", e.Err)
	}
	return fmt.Sprintf("fhirclient: transaction post returned status %d", e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PushResult is returned on a completed round trip whose status is below
// 400; a status of 400 or above, like a transport-level failure, surfaces
// as a *TransportError instead.
type PushResult struct {
	StatusCode int
	Body       interface{}
}

// Push converts bundle to a transaction bundle and POSTs it to Client's
// base endpoint. A 30-second timeout is added to ctx only when ctx carries
// no deadline of its own.
func (c *Client) Push(ctx context.Context, bundle *fhir.Bundle) (*PushResult, error) {
	txn := ToTransaction(bundle)

	payload, err := json.Marshal(txn)
	if err != nil {
		return nil, fmt.Errorf("fhirclient: marshal transaction: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("fhirclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/fhir+json")
	c.Auth.apply(req)

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	var body interface{}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode >= 400 {
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: body}
	}

	return &PushResult{StatusCode: resp.StatusCode, Body: body}, nil
}

// ToTransaction converts a "message" bundle into a "transaction" bundle:
// each entry with both resourceType and id becomes a PUT of that resource
// to its own URL, with server-managed fields (meta, text) stripped.
func ToTransaction(bundle *fhir.Bundle) *fhir.TransactionBundle {
	var entries []fhir.TransactionEntry
	for _, e := range bundle.Entry {
		rt, hasType := e.Resource["resourceType"].(string)
		id, hasID := e.Resource["id"].(string)
		if !hasType || !hasID || rt == "" || id == "" {
			continue
		}
		entries = append(entries, fhir.ToTransactionEntry(e))
	}
	return fhir.NewTransactionBundle(entries)
}
