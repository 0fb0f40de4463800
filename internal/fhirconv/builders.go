package fhirconv

import (
	"strconv"
	"strings"

	"github.com/piqitt/piqi/internal/hl7v2"
	"github.com/piqitt/piqi/pkg/fhirmodels"
)

// Endpoints carries the source/destination endpoint URIs the MessageHeader
// builder stamps onto every converted message, configured once per process
// (internal/config.Config.SrcEndpoint/DstEndpoint) rather than rebuilt per
// message.
type Endpoints struct {
	Source      string
	Destination string
}

// BuildMessageHeader constructs a MessageHeader from a parsed message's
// MSH-derived fields. R4's MessageHeader has no timestamp element, so MSH-7
// is not placed here; Convert carries it on the bundle's Timestamp for the
// annotator (see internal/piqi/annotate).
func BuildMessageHeader(msg *hl7v2.Message, ep Endpoints) map[string]interface{} {
	code := hl7v2.Component(msg.Type, 1)
	trigger := hl7v2.Component(msg.Type, 2)

	eventCode := code
	if trigger != "" {
		eventCode = code + "^" + trigger
	}

	sourceName := joinNonEmpty(msg.SendingApp, msg.SendingFac)
	destName := joinNonEmpty(msg.ReceivingApp, msg.ReceivingFac)

	return map[string]interface{}{
		"resourceType": "MessageHeader",
		"id":           newID(prefixMessageHeader),
		"eventCoding": map[string]interface{}{
			"system": "http://terminology.hl7.org/CodeSystem/v2-0003",
			"code":   eventCode,
		},
		"source": map[string]interface{}{
			"name":     sourceName,
			"endpoint": ep.Source,
		},
		"destination": []interface{}{
			map[string]interface{}{
				"name":     destName,
				"endpoint": ep.Destination,
			},
		},
	}
}

// joinNonEmpty renders "app|facility", trimming an empty side's separator,
// and falls back to "Unknown" when both sides are empty.
func joinNonEmpty(app, facility string) string {
	name := strings.Trim(app+"|"+facility, "|")
	if name == "" {
		return "Unknown"
	}
	return name
}

// BuildPatient constructs a Patient from msg's PID segment, via the
// message's PID accessors (PatientName/DateOfBirth/Gender) for the fields
// they cover and direct field access for the multi-repetition identifier
// and address fields those accessors don't model.
func BuildPatient(msg *hl7v2.Message) map[string]interface{} {
	pid := msg.GetSegment("PID")

	family, given := msg.PatientName()
	names := []interface{}{}
	nameEntry := map[string]interface{}{"family": family}
	if given != "" {
		nameEntry["given"] = []interface{}{given}
	} else {
		nameEntry["given"] = []interface{}{}
	}
	names = append(names, nameEntry)

	patient := map[string]interface{}{
		"resourceType": "Patient",
		"id":           newID(prefixPatient),
		"name":         names,
		"gender":       toGender(msg.Gender()),
	}
	if dob := hl7v2.ToISODate(msg.DateOfBirth()); dob != "" {
		patient["birthDate"] = dob
	}

	if identifiers := buildPatientIdentifiers(pid.Field(3)); len(identifiers) > 0 {
		patient["identifier"] = identifiers
	}

	if addr := buildPatientAddress(pid.Field(11)); addr != nil {
		patient["address"] = []interface{}{addr}
	}

	return patient
}

func buildPatientIdentifiers(pid3 string) []interface{} {
	var out []interface{}
	for _, rep := range hl7v2.Reps(pid3) {
		value := hl7v2.Component(rep, 1)
		authority := hl7v2.Component(rep, 4)
		if value == "" {
			continue
		}
		system := "urn:mrn"
		if authority != "" {
			system = "urn:oid:" + authority
		}
		out = append(out, map[string]interface{}{
			"system": system,
			"value":  value,
		})
	}
	return out
}

func buildPatientAddress(pid11 string) map[string]interface{} {
	street := hl7v2.Component(pid11, 1)
	city := hl7v2.Component(pid11, 3)
	state := hl7v2.Component(pid11, 4)
	postal := hl7v2.Component(pid11, 5)

	if street == "" && city == "" && state == "" && postal == "" {
		return nil
	}

	addr := map[string]interface{}{}
	if street != "" {
		addr["line"] = []interface{}{street}
	}
	if city != "" {
		addr["city"] = city
	}
	if state != "" {
		addr["state"] = state
	}
	if postal != "" {
		addr["postalCode"] = postal
	}
	return addr
}

func toGender(sex string) string {
	switch strings.ToUpper(strings.TrimSpace(sex)) {
	case "M":
		return fhirmodels.GenderMale
	case "F":
		return fhirmodels.GenderFemale
	case "O":
		return fhirmodels.GenderOther
	default:
		return fhirmodels.GenderUnknown
	}
}

// BuildEncounter constructs an Encounter from a PV1 segment; requires a
// Patient reference since Encounter.subject is mandatory in this mapping.
func BuildEncounter(pv1 *hl7v2.Segment, patientRef string) map[string]interface{} {
	class := pv1.Field(2)
	if class == "" {
		class = fhirmodels.EncounterClassUnknown
	}

	location := pv1.Field(3)
	pointOfCare := strings.TrimSpace(hl7v2.Component(location, 1))
	room := strings.TrimSpace(hl7v2.Component(location, 2))
	bed := strings.TrimSpace(hl7v2.Component(location, 3))
	facility := strings.TrimSpace(hl7v2.Component(location, 4))

	encounter := map[string]interface{}{
		"resourceType": "Encounter",
		"id":           newID(prefixEncounter),
		"status":       fhirmodels.EncounterStatusFinished,
		"class":        map[string]interface{}{"code": class},
		"subject":      map[string]interface{}{"reference": patientRef},
	}

	var sub []interface{}
	addSub := func(url, val string) {
		if val != "" {
			sub = append(sub, map[string]interface{}{"url": url, "valueString": val})
		}
	}
	addSub("pointOfCare", pointOfCare)
	addSub("room", room)
	addSub("bed", bed)
	addSub("facility", facility)

	if len(sub) > 0 {
		encounter["extension"] = []interface{}{
			map[string]interface{}{
				"url":       "http://example.org/fhir/StructureDefinition/hl7v2-location",
				"extension": sub,
			},
		}
	}

	return encounter
}

// BuildObservation constructs an Observation from an OBX segment, dispatching
// the value mapping on OBX-2's value type (TX/ST/NM/CE/DT/TS, else valueString).
func BuildObservation(obx *hl7v2.Segment, patientRef, encounterRef string) map[string]interface{} {
	valueType := strings.ToUpper(obx.Field(2))
	code := obx.Field(3)
	raw := obx.Field(5)
	units := obx.Field(6)

	obs := map[string]interface{}{
		"resourceType": "Observation",
		"id":           newID(prefixObservation),
		"status":       "final",
		"code":         orDefaultText(codeableConceptFromCE(code), "Observation"),
	}
	if patientRef != "" {
		obs["subject"] = map[string]interface{}{"reference": patientRef}
	}
	if encounterRef != "" {
		obs["encounter"] = map[string]interface{}{"reference": encounterRef}
	}

	if effective := hl7v2.ToFHIRDateTime(obx.Field(14)); effective != "" {
		obs["effectiveDateTime"] = effective
	}

	switch valueType {
	case "TX", "ST":
		obs["valueString"] = raw
	case "NM":
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			quantity := map[string]interface{}{"value": f}
			if units != "" {
				if strings.Contains(units, "^") {
					unit := hl7v2.Component(units, 2)
					if unit == "" {
						unit = hl7v2.Component(units, 1)
					}
					quantity["unit"] = unit
				} else {
					quantity["unit"] = units
				}
			}
			obs["valueQuantity"] = quantity
		} else {
			obs["valueString"] = raw
		}
	case "CE":
		obs["valueCodeableConcept"] = codeableConceptFromCE(raw)
	case "DT", "TS":
		if dt := hl7v2.ToFHIRDateTime(raw); dt != "" {
			obs["valueDateTime"] = dt
		} else {
			obs["valueString"] = raw
		}
	default:
		obs["valueString"] = raw
	}

	return obs
}

// orDefaultText substitutes {"text": fallback} when a coded element came
// back empty (no code, no text).
func orDefaultText(cc map[string]interface{}, fallback string) map[string]interface{} {
	if len(cc) == 0 {
		return map[string]interface{}{"text": fallback}
	}
	return cc
}

// BuildDiagnosticReport constructs a DiagnosticReport from an OBR segment,
// given the reference strings of the Observations it should list as results.
func BuildDiagnosticReport(obr *hl7v2.Segment, patientRef, encounterRef string, resultRefs []string) map[string]interface{} {
	dr := map[string]interface{}{
		"resourceType": "DiagnosticReport",
		"id":           newID(prefixDiagReport),
		"status":       "final",
		"code":         orDefaultText(codeableConceptFromCE(obr.Field(4)), "Diagnostic Report"),
		"result":       referenceList(resultRefs),
	}
	if patientRef != "" {
		dr["subject"] = map[string]interface{}{"reference": patientRef}
	}
	if encounterRef != "" {
		dr["encounter"] = map[string]interface{}{"reference": encounterRef}
	}
	return dr
}

// SynthesizeDiagnosticReport builds the fallback DiagnosticReport used when
// OBX segments exist with no owning OBR.
func SynthesizeDiagnosticReport(patientRef, encounterRef string, resultRefs []string) map[string]interface{} {
	dr := map[string]interface{}{
		"resourceType": "DiagnosticReport",
		"id":           newID(prefixDiagReport),
		"status":       "final",
		"code":         map[string]interface{}{"text": "Diagnostic Report"},
		"result":       referenceList(resultRefs),
	}
	if patientRef != "" {
		dr["subject"] = map[string]interface{}{"reference": patientRef}
	}
	if encounterRef != "" {
		dr["encounter"] = map[string]interface{}{"reference": encounterRef}
	}
	return dr
}

func referenceList(refs []string) []interface{} {
	out := make([]interface{}, 0, len(refs))
	for _, r := range refs {
		out = append(out, map[string]interface{}{"reference": r})
	}
	return out
}

// BuildClaim constructs a Claim from an FT1 segment (the DFT/P03 flow).
func BuildClaim(ft1 *hl7v2.Segment, patientRef, encounterRef string) map[string]interface{} {
	date := ft1.Field(4)
	code := ft1.Field(6)
	desc := ft1.Field(7)
	amount := ft1.Field(10)

	claim := map[string]interface{}{
		"resourceType": "Claim",
		"id":           newID(prefixClaim),
		"status":       "active",
		"type":         map[string]interface{}{"text": "professional"},
	}
	if patientRef != "" {
		claim["patient"] = map[string]interface{}{"reference": patientRef}
	}
	if encounterRef != "" {
		claim["encounter"] = []interface{}{map[string]interface{}{"reference": encounterRef}}
	}
	if len(date) >= 8 {
		iso := hl7v2.ToISODate(date[:8])
		if iso != "" {
			claim["billablePeriod"] = map[string]interface{}{"start": iso, "end": iso}
		}
	}

	items := []interface{}{}
	if code != "" || desc != "" || amount != "" {
		item := map[string]interface{}{
			"sequence":         1,
			"productOrService": map[string]interface{}{"text": strings.TrimSpace(code + " " + desc)},
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(amount), 64); err == nil {
			item["unitPrice"] = map[string]interface{}{"value": f}
		}
		items = append(items, item)
	}
	claim["item"] = items

	return claim
}
