package fhirconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piqitt/piqi/internal/hl7v2"
)

const sampleADT = "MSH|^~\\&|SendingApp|SendingFac|ReceivingApp|ReceivingFac|20240115143025||ADT^A01|MSG00001|P|2.5.1\rEVN|A01|20240115143025\rPID|1||MRN12345^^^MRNAuth||Doe^John^A||19800515|M|||123 Main St^^Springfield^IL^62701||555-555-1234\rPV1|1|I|ICU^101^A||||1234^Smith^Robert|||MED||||||||I|VN12345"

const sampleORU = "MSH|^~\\&|LabSystem|LabFac|EHR|EHRFac|20240115150000||ORU^R01|MSG00002|P|2.5.1\rPID|1||MRN12345^^^MRNAuth||Doe^John||19800515|M\rOBR|1|ORD001|LAB001|85025^CBC^LN|||20240115140000\rOBX|1|NM|718-7^Hemoglobin^LN||13.5|g/dL|12.0-17.5|N|||F\rOBX|2|NM|4544-3^Hematocrit^LN||40.1|%|36.0-53.0|N|||F"

func mustParse(t *testing.T, raw string) *hl7v2.Message {
	t.Helper()
	msg, err := hl7v2.Parse([]byte(raw))
	require.NoError(t, err)
	return msg
}

func TestBuildMessageHeader(t *testing.T) {
	msg := mustParse(t, sampleADT)
	ep := Endpoints{Source: "urn:piqi:src", Destination: "urn:piqi:dst"}

	mh := BuildMessageHeader(msg, ep)

	assert.Equal(t, "MessageHeader", mh["resourceType"])
	eventCoding := mh["eventCoding"].(map[string]interface{})
	assert.Equal(t, "ADT^A01", eventCoding["code"])
	source := mh["source"].(map[string]interface{})
	assert.Equal(t, "SendingApp|SendingFac", source["name"])
	assert.Equal(t, "urn:piqi:src", source["endpoint"])
}

func TestBuildPatient(t *testing.T) {
	msg := mustParse(t, sampleADT)
	patient := BuildPatient(msg)

	assert.Equal(t, "Patient", patient["resourceType"])

	names := patient["name"].([]interface{})
	require.Len(t, names, 1)
	name := names[0].(map[string]interface{})
	assert.Equal(t, "Doe", name["family"])
	assert.Equal(t, []interface{}{"John"}, name["given"])

	assert.Equal(t, "male", patient["gender"])
	assert.Equal(t, "1980-05-15", patient["birthDate"])

	identifiers := patient["identifier"].([]interface{})
	require.Len(t, identifiers, 1)
	ident := identifiers[0].(map[string]interface{})
	assert.Equal(t, "MRN12345", ident["value"])

	addr := patient["address"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Springfield", addr["city"])
	assert.Equal(t, "IL", addr["state"])
}

func TestBuildEncounter(t *testing.T) {
	msg := mustParse(t, sampleADT)
	enc := BuildEncounter(msg.GetSegment("PV1"), "Patient/pat-1")

	assert.Equal(t, "Encounter", enc["resourceType"])
	assert.Equal(t, "finished", enc["status"])
	class := enc["class"].(map[string]interface{})
	assert.Equal(t, "I", class["code"])
	subject := enc["subject"].(map[string]interface{})
	assert.Equal(t, "Patient/pat-1", subject["reference"])
}

func TestBuildObservation_NumericValue(t *testing.T) {
	msg := mustParse(t, sampleORU)
	obxSegs := msg.GetSegments("OBX")
	require.Len(t, obxSegs, 2)

	obs := BuildObservation(&obxSegs[0], "Patient/pat-1", "")
	assert.Equal(t, "Observation", obs["resourceType"])
	vq := obs["valueQuantity"].(map[string]interface{})
	assert.InDelta(t, 13.5, vq["value"], 0.001)
	assert.Equal(t, "g/dL", vq["unit"])

	code := obs["code"].(map[string]interface{})
	coding := code["coding"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "718-7", coding["code"])
	assert.Equal(t, "http://loinc.org", coding["system"])
}

func TestBuildClaim_OmitsItemWhenAllFieldsEmpty(t *testing.T) {
	raw := "MSH|^~\\&|BillApp|BillFac|EHR|EHRFac|20240115160000||DFT^P03|MSG00004|P|2.5.1\rPID|1||MRN12345^^^MRNAuth||Doe^John||19800515|M\rFT1|1|||20240115\r"
	msg := mustParse(t, raw)
	ft1 := msg.GetSegment("FT1")
	claim := BuildClaim(ft1, "Patient/pat-1", "")

	items := claim["item"].([]interface{})
	assert.Empty(t, items)
}

func TestBuildClaim_IncludesItemWhenCodePresent(t *testing.T) {
	raw := "MSH|^~\\&|BillApp|BillFac|EHR|EHRFac|20240115160000||DFT^P03|MSG00004|P|2.5.1\rPID|1||MRN12345^^^MRNAuth||Doe^John||19800515|M\rFT1|1|||20240115||99213|Office visit|||150.00\r"
	msg := mustParse(t, raw)
	ft1 := msg.GetSegment("FT1")
	claim := BuildClaim(ft1, "Patient/pat-1", "")

	items := claim["item"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	pos := item["productOrService"].(map[string]interface{})
	assert.Contains(t, pos["text"], "99213")
}
