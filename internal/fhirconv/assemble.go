package fhirconv

import (
	"strings"

	"github.com/piqitt/piqi/internal/hl7v2"
	"github.com/piqitt/piqi/internal/platform/fhir"
)

// ConvertResult is the output of converting a single HL7 message: the
// assembled bundle plus the MSH-9 message type string used for tagging and
// dispatch logging.
type ConvertResult struct {
	Bundle  *fhir.Bundle
	MsgType string
}

// Convert dispatches on MSH-9.1 to the message-type-specific assembler
// (ORU/ADT/DFT), falling back to the minimal MessageHeader(+Patient) bundle
// for anything else.
func Convert(msg *hl7v2.Message, ep Endpoints) ConvertResult {
	pid := msg.GetSegment("PID")
	pv1 := msg.GetSegment("PV1")

	eventCode := strings.ToUpper(hl7v2.Component(msg.Type, 1))

	var entries []fhir.BundleEntry

	msgHeader := BuildMessageHeader(msg, ep)
	entries = append(entries, entry(msgHeader))

	var patient map[string]interface{}
	var patientRef string
	if pid != nil {
		patient = BuildPatient(msg)
		patientRef = fhir.FormatReference("Patient", patient["id"].(string))
		entries = append(entries, entry(patient))
	}

	// Unknown event types get only MessageHeader (+ Patient); no Encounter
	// or downstream resources per the spec's Unknown-dispatch rule.
	if eventCode != "ORU" && eventCode != "ADT" && eventCode != "DFT" {
		bundle := fhir.NewMessageBundle(newID(prefixBundle), msg.Timestamp, entries)
		if msg.Timestamp.IsZero() {
			bundle.Timestamp = nil
		}
		return ConvertResult{Bundle: bundle, MsgType: msg.Type}
	}

	var encounter map[string]interface{}
	var encounterRef string
	// Encounter requires a Patient reference per spec 4.D.
	if pv1 != nil && patientRef != "" {
		encounter = BuildEncounter(pv1, patientRef)
		encounterRef = fhir.FormatReference("Encounter", encounter["id"].(string))
		entries = append(entries, entry(encounter))
	}

	switch eventCode {
	case "ORU":
		entries = append(entries, buildORUEntries(msg, patientRef, encounterRef)...)
	case "ADT":
		entries = append(entries, buildADTEntries(msg, patientRef, encounterRef)...)
	case "DFT":
		entries = append(entries, buildDFTEntries(msg, patientRef, encounterRef)...)
	}

	bundle := fhir.NewMessageBundle(newID(prefixBundle), msg.Timestamp, entries)
	if msg.Timestamp.IsZero() {
		bundle.Timestamp = nil
	}
	return ConvertResult{Bundle: bundle, MsgType: msg.Type}
}

func buildORUEntries(msg *hl7v2.Message, patientRef, encounterRef string) []fhir.BundleEntry {
	var entries []fhir.BundleEntry

	observations := buildObservations(msg, patientRef, encounterRef)
	obsRefs := observationRefs(observations)

	obr := msg.GetSegment("OBR")
	var dr map[string]interface{}
	if obr != nil {
		dr = BuildDiagnosticReport(obr, patientRef, encounterRef, obsRefs)
	} else {
		dr = SynthesizeDiagnosticReport(patientRef, encounterRef, obsRefs)
	}
	entries = append(entries, entry(dr))

	for _, o := range observations {
		entries = append(entries, entry(o))
	}
	return entries
}

func buildADTEntries(msg *hl7v2.Message, patientRef, encounterRef string) []fhir.BundleEntry {
	var entries []fhir.BundleEntry

	observations := buildObservations(msg, patientRef, encounterRef)
	obsRefs := observationRefs(observations)

	if obr := msg.GetSegment("OBR"); obr != nil {
		dr := BuildDiagnosticReport(obr, patientRef, encounterRef, obsRefs)
		entries = append(entries, entry(dr))
	}

	for _, o := range observations {
		entries = append(entries, entry(o))
	}
	return entries
}

func buildDFTEntries(msg *hl7v2.Message, patientRef, encounterRef string) []fhir.BundleEntry {
	var entries []fhir.BundleEntry
	for _, ft1 := range msg.GetSegments("FT1") {
		seg := ft1
		entries = append(entries, entry(BuildClaim(&seg, patientRef, encounterRef)))
	}
	return entries
}

func buildObservations(msg *hl7v2.Message, patientRef, encounterRef string) []map[string]interface{} {
	var observations []map[string]interface{}
	for _, obx := range msg.GetSegments("OBX") {
		seg := obx
		observations = append(observations, BuildObservation(&seg, patientRef, encounterRef))
	}
	return observations
}

func observationRefs(observations []map[string]interface{}) []string {
	refs := make([]string, 0, len(observations))
	for _, o := range observations {
		refs = append(refs, fhir.FormatReference("Observation", o["id"].(string)))
	}
	return refs
}

func entry(resource map[string]interface{}) fhir.BundleEntry {
	rt, _ := resource["resourceType"].(string)
	id, _ := resource["id"].(string)
	return fhir.BundleEntry{
		FullURL:  fhir.FormatReference(rt, id),
		Resource: resource,
	}
}
