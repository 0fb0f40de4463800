// Package fhirmodels holds the small set of FHIR R4 value-set constants the
// HL7-to-FHIR converter needs; it does not attempt to cover the terminology
// surface a full FHIR server would.
package fhirmodels

// AdministrativeGender codes, the target of the PID-8 mapping.
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderOther   = "other"
	GenderUnknown = "unknown"
)

// EncounterStatus is fixed for converted encounters: the HL7 feed only ever
// describes encounters after the fact, so every Encounter is built "finished".
const EncounterStatusFinished = "finished"

// EncounterClassUnknown is the v3-ActCode fallback used when PV1-2 is empty.
const EncounterClassUnknown = "UNK"

// ObsCategoryQuality tags the PIQI scorecard Observation distinctly from
// clinical observations.
const ObsCategoryQuality = "quality"
