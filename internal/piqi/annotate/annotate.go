// Package annotate builds the PIQI scorecard Observation and embeds it into
// a (cloned) bundle. It is the only component in the pipeline allowed to
// mutate a bundle, and it always does so on a caller-provided clone.
package annotate

import (
	"time"

	"github.com/google/uuid"

	"github.com/piqitt/piqi/internal/piqi/eval"
	"github.com/piqitt/piqi/internal/platform/fhir"
	"github.com/piqitt/piqi/pkg/fhirmodels"
)

const (
	piqiCodeSystem = "http://example.org/piqi/code-system"

	extSourceMessage = "http://example.org/piqi/StructureDefinition/sourceMessage"
	extProfileName   = "http://example.org/piqi/StructureDefinition/profile-name"
)

// nowUTC is overridable in tests; production code always uses the wall clock.
var nowUTC = func() time.Time { return time.Now().UTC() }

// Annotate appends a PIQI Observation summarizing result to bundle (which
// the caller must have already cloned: see fhir.Bundle.Clone). profileName
// is optional and, when non-empty, recorded as an extension.
func Annotate(bundle *fhir.Bundle, result eval.Result, profileName string) {
	obs := buildObservation(bundle, result, profileName)
	bundle.AddEntry(fhir.BundleEntry{
		FullURL:  fhir.FormatReference("Observation", obs["id"].(string)),
		Resource: obs,
	})
}

func buildObservation(bundle *fhir.Bundle, result eval.Result, profileName string) map[string]interface{} {
	patientID := firstID(bundle, "Patient")
	headerID := firstID(bundle, "MessageHeader")

	obs := map[string]interface{}{
		"resourceType": "Observation",
		"id":            newPIQIID(),
		"status":       "final",
		"category": []interface{}{
			map[string]interface{}{
				"coding": []interface{}{
					map[string]interface{}{
						"system":  "http://terminology.hl7.org/CodeSystem/observation-category",
						"code":    fhirmodels.ObsCategoryQuality,
						"display": "Data Quality",
					},
				},
			},
		},
		"code": map[string]interface{}{
			"coding": []interface{}{
				map[string]interface{}{
					"system":  piqiCodeSystem,
					"code":    "PIQI-INDEX",
					"display": "PIQI data quality index",
				},
			},
			"text": "PIQI data quality index",
		},
		"effectiveDateTime": effectiveDateTime(bundle),
		"valueQuantity": map[string]interface{}{
			"value":  result.PIQIIndex,
			"unit":   "%",
			"system": "http://unitsofmeasure.org",
			"code":   "%",
		},
		"component": components(result),
	}

	if patientID != "" {
		obs["subject"] = map[string]interface{}{"reference": fhir.FormatReference("Patient", patientID)}
	}

	var extensions []interface{}
	if headerID != "" {
		extensions = append(extensions, map[string]interface{}{
			"url":           extSourceMessage,
			"valueReference": map[string]interface{}{"reference": fhir.FormatReference("MessageHeader", headerID)},
		})
	}
	if profileName != "" {
		extensions = append(extensions, map[string]interface{}{
			"url":         extProfileName,
			"valueString": profileName,
		})
	}
	if len(extensions) > 0 {
		obs["extension"] = extensions
	}

	if result.MessageID != "" {
		obs["identifier"] = []interface{}{
			map[string]interface{}{
				"system": "http://example.org/piqi/message-id",
				"value":  result.MessageID,
			},
		}
	}

	return obs
}

// effectiveDateTime follows Open Question (a): FHIR R4's MessageHeader has
// no timestamp element, so the HL7 MSH-7 value travels on the bundle's own
// Timestamp (set by fhirconv.Convert). That value is used when present;
// otherwise the current UTC time truncated to the second is used (see
// DESIGN.md).
func effectiveDateTime(bundle *fhir.Bundle) string {
	if bundle.Timestamp != nil && !bundle.Timestamp.IsZero() {
		return bundle.Timestamp.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
	}
	return nowUTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

func components(result eval.Result) []interface{} {
	var out []interface{}
	add := func(code, display string, val interface{}, kind string) {
		if val == nil {
			return
		}
		c := map[string]interface{}{
			"code": map[string]interface{}{
				"coding": []interface{}{
					map[string]interface{}{
						"system":  piqiCodeSystem,
						"code":    code,
						"display": display,
					},
				},
			},
		}
		switch kind {
		case "Integer":
			c["valueInteger"] = val
		case "Quantity":
			c["valueQuantity"] = map[string]interface{}{
				"value":  val,
				"unit":   "%",
				"system": "http://unitsofmeasure.org",
				"code":   "%",
			}
		}
		out = append(out, c)
	}

	add("PIQI-NUM", "PIQI numerator", result.Numerator, "Integer")
	add("PIQI-DEN", "PIQI denominator", result.Denominator, "Integer")
	add("PIQI-WNUM", "Weighted numerator", int(result.WeightedNumerator), "Integer")
	add("PIQI-WDEN", "Weighted denominator", int(result.WeightedDenominator), "Integer")
	if result.PIQIWeightedIndex != nil {
		add("PIQI-WINDEX", "PIQI weighted index", *result.PIQIWeightedIndex, "Quantity")
	}
	add("PIQI-CRIT-FAIL", "Critical failure count", result.CriticalFailureCount, "Integer")

	return out
}

func firstID(bundle *fhir.Bundle, resourceType string) string {
	resources := bundle.ResourcesOfType(resourceType)
	if len(resources) == 0 {
		return ""
	}
	id, _ := resources[0]["id"].(string)
	return id
}

func newPIQIID() string {
	return "piqi-" + uuid.NewString()
}
