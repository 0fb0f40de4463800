package fhirconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEndpoints() Endpoints {
	return Endpoints{Source: "urn:piqi:src", Destination: "urn:piqi:dst"}
}

func TestConvert_ADT_BuildsPatientAndEncounter(t *testing.T) {
	msg := mustParse(t, sampleADT)
	result := Convert(msg, testEndpoints())

	assert.Equal(t, "ADT^A01", result.MsgType)

	types := map[string]int{}
	for _, e := range result.Bundle.Entry {
		rt, _ := e.Resource["resourceType"].(string)
		types[rt]++
	}
	assert.Equal(t, 1, types["MessageHeader"])
	assert.Equal(t, 1, types["Patient"])
	assert.Equal(t, 1, types["Encounter"])
}

func TestConvert_ORU_BuildsDiagnosticReportAndObservations(t *testing.T) {
	msg := mustParse(t, sampleORU)
	result := Convert(msg, testEndpoints())

	types := map[string]int{}
	for _, e := range result.Bundle.Entry {
		rt, _ := e.Resource["resourceType"].(string)
		types[rt]++
	}
	assert.Equal(t, 1, types["MessageHeader"])
	assert.Equal(t, 1, types["Patient"])
	assert.Equal(t, 1, types["DiagnosticReport"])
	assert.Equal(t, 2, types["Observation"])
	assert.Equal(t, 0, types["Encounter"])
}

func TestConvert_UnknownMessageType_OnlyHeaderAndPatient(t *testing.T) {
	raw := "MSH|^~\\&|SendingApp|SendingFac|ReceivingApp|ReceivingFac|20240115143025||QRY^A19|MSG00099|P|2.5.1\rPID|1||MRN12345^^^MRNAuth||Doe^John||19800515|M\rPV1|1|I|ICU^101^A"
	msg := mustParse(t, raw)
	result := Convert(msg, testEndpoints())

	require.Len(t, result.Bundle.Entry, 2)
	types := []string{}
	for _, e := range result.Bundle.Entry {
		rt, _ := e.Resource["resourceType"].(string)
		types = append(types, rt)
	}
	assert.ElementsMatch(t, []string{"MessageHeader", "Patient"}, types)
}

func TestConvert_SetsBundleTimestampFromMSH7(t *testing.T) {
	msg := mustParse(t, sampleADT)
	result := Convert(msg, testEndpoints())

	require.NotNil(t, result.Bundle.Timestamp)
	assert.Equal(t, 2024, result.Bundle.Timestamp.Year())
}
