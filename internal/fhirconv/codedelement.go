package fhirconv

import (
	"strings"

	"github.com/piqitt/piqi/internal/hl7v2"
)

// codeableConceptFromCE maps an HL7 CE field ("code^text^system") to a FHIR
// CodeableConcept. LN/LOINC systems resolve to the canonical LOINC URI;
// any other non-empty system becomes an hl7v2 urn; an empty system still
// gets a bare urn so a coding is never left without a system.
func codeableConceptFromCE(ceField string) map[string]interface{} {
	code := hl7v2.Component(ceField, 1)
	text := hl7v2.Component(ceField, 2)
	system := hl7v2.Component(ceField, 3)

	if code == "" {
		if text != "" {
			return map[string]interface{}{"text": text}
		}
		return map[string]interface{}{}
	}

	coding := map[string]interface{}{
		"system": codeSystemURI(system),
		"code":   code,
	}
	if text != "" {
		coding["display"] = text
	}

	return map[string]interface{}{
		"coding": []interface{}{coding},
	}
}

func codeSystemURI(system string) string {
	switch strings.ToUpper(strings.TrimSpace(system)) {
	case "LN", "LOINC":
		return "http://loinc.org"
	case "":
		return "urn:hl7v2"
	default:
		return "urn:hl7v2:" + system
	}
}
