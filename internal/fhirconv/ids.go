// Package fhirconv builds FHIR R4 resources and bundles from parsed HL7v2
// messages. Builders are pure functions over an internal/hl7v2.Segment or
// Message; each generates its own id, so the assembler never has to thread id
// allocation through the call graph.
package fhirconv

import "github.com/google/uuid"

// idPrefixes mirrors the spec's <prefix>-<uuid> resource id convention.
const (
	prefixMessageHeader = "msg"
	prefixPatient       = "pat"
	prefixEncounter     = "enc"
	prefixObservation   = "obs"
	prefixDiagReport    = "dr"
	prefixClaim         = "claim"
	prefixBundle        = "bundle"
	prefixPIQI          = "piqi"
)

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
