// Package hl7v2 implements a minimal HL7 v2 lexer and typed accessor layer:
// enough structure to drive FHIR conversion without modeling the full v2
// grammar (no escape-sequence decoding beyond pass-through, no segment
// cardinality rules).
package hl7v2

import (
	"fmt"
	"strings"
	"time"
)

// Message represents a parsed HL7v2 message.
type Message struct {
	Type         string    // MSH-9 message type (e.g. "ADT^A01")
	Timestamp    time.Time // MSH-7
	SendingApp   string    // MSH-3
	SendingFac   string    // MSH-4
	ReceivingApp string    // MSH-5
	ReceivingFac string    // MSH-6
	Segments     []Segment
}

// Segment represents a single HL7v2 segment: a name plus its raw,
// pipe-delimited fields. Fields stay as opaque strings until a caller asks
// for a component or repetition.
type Segment struct {
	Name   string
	Fields []string
}

// Parse parses raw HL7v2 message bytes into a structured Message. It accepts
// \r, \n, and \r\n segment separators and expects the first segment to be MSH.
func Parse(raw []byte) (*Message, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("hl7v2: message is empty")
	}

	lines := SplitSegments(string(raw))
	if len(lines) == 0 {
		return nil, fmt.Errorf("hl7v2: no segments found")
	}
	if !strings.HasPrefix(lines[0], "MSH") {
		end := min(3, len(lines[0]))
		return nil, fmt.Errorf("hl7v2: first segment must be MSH, got %q", lines[0][:end])
	}

	msg := &Message{}
	for _, line := range lines {
		msg.Segments = append(msg.Segments, parseSegment(line))
	}

	if err := msg.extractMSHFields(); err != nil {
		return nil, err
	}
	return msg, nil
}

// SplitSegments normalizes line endings and returns the non-empty segment
// lines of an HL7 blob.
func SplitSegments(hl7 string) []string {
	text := strings.ReplaceAll(hl7, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		if strings.TrimSpace(ln) != "" {
			lines = append(lines, ln)
		}
	}
	return lines
}

// SplitMessages splits a blob that may hold multiple back-to-back HL7
// messages, using a line starting with "MSH|" as the message boundary.
func SplitMessages(hl7Text string) []string {
	lines := SplitSegments(hl7Text)

	var starts []int
	for i, ln := range lines {
		if strings.HasPrefix(ln, "MSH|") {
			starts = append(starts, i)
		}
	}

	var messages []string
	for i, start := range starts {
		end := len(lines)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		block := strings.TrimSpace(strings.Join(lines[start:end], "\r"))
		if block != "" {
			messages = append(messages, block)
		}
	}
	return messages
}

// parseSegment splits a segment line into its name and raw fields. No
// component or repetition interpretation happens here; that's deferred to
// Field/Component/Reps so a caller only pays for the structure it asks for.
func parseSegment(line string) Segment {
	parts := strings.Split(line, "|")
	return Segment{
		Name:   strings.TrimSpace(parts[0]),
		Fields: parts[1:],
	}
}

// extractMSHFields populates the Message's MSH-derived header fields.
func (m *Message) extractMSHFields() error {
	msh := m.GetSegment("MSH")
	if msh == nil {
		return fmt.Errorf("hl7v2: MSH segment not found")
	}

	m.SendingApp = msh.Field(3)
	m.SendingFac = msh.Field(4)
	m.ReceivingApp = msh.Field(5)
	m.ReceivingFac = msh.Field(6)

	if ts := msh.Field(7); ts != "" {
		if t, err := parseHL7Timestamp(ts); err == nil {
			m.Timestamp = t
		}
	}

	m.Type = msh.Field(9)

	return nil
}

// parseHL7Timestamp parses the numeric prefix of an HL7v2 TS value
// (YYYYMMDD[HHMMSS]).
func parseHL7Timestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.SplitN(s, "^", 2)[0])
	switch {
	case len(s) >= 14:
		return time.Parse("20060102150405", s[:14])
	case len(s) >= 8:
		return time.Parse("20060102", s[:8])
	default:
		return time.Time{}, fmt.Errorf("hl7v2: unrecognized timestamp format: %q", s)
	}
}

// GetSegment returns the first segment with the given name, or nil.
func (m *Message) GetSegment(name string) *Segment {
	for i := range m.Segments {
		if m.Segments[i].Name == name {
			return &m.Segments[i]
		}
	}
	return nil
}

// GetSegments returns all segments with the given name.
func (m *Message) GetSegments(name string) []Segment {
	var result []Segment
	for _, seg := range m.Segments {
		if seg.Name == name {
			result = append(result, seg)
		}
	}
	return result
}

// Field returns the nominal 1-based field n of the segment. For MSH, n is
// remapped by n-2 since MSH's first split field is the encoding-characters
// field rather than MSH-1; every other segment uses the plain n-1 mapping.
// Out-of-range always returns "" rather than failing.
func (s *Segment) Field(n int) string {
	idx := n - 1
	if s.Name == "MSH" {
		idx = n - 2
	}
	if idx < 0 || idx >= len(s.Fields) {
		return ""
	}
	return s.Fields[idx]
}

// Component extracts component i (1-based) of field n (1-based) from a
// ^-delimited value.
func (s *Segment) Component(n, i int) string {
	return Component(s.Field(n), i)
}

// Component extracts component i (1-based) from a ^-delimited field value.
func Component(field string, i int) string {
	if field == "" {
		return ""
	}
	comps := strings.Split(field, "^")
	j := i - 1
	if j < 0 || j >= len(comps) {
		return ""
	}
	return comps[j]
}

// Reps splits a repeating field on ~ into its individual repetitions.
func Reps(field string) []string {
	if field == "" {
		return nil
	}
	return strings.Split(field, "~")
}

// PatientName returns the family and given name from PID-5.
func (m *Message) PatientName() (family, given string) {
	pid := m.GetSegment("PID")
	if pid == nil {
		return "", ""
	}
	return pid.Component(5, 1), pid.Component(5, 2)
}

// DateOfBirth returns PID-7 verbatim.
func (m *Message) DateOfBirth() string {
	pid := m.GetSegment("PID")
	if pid == nil {
		return ""
	}
	return pid.Field(7)
}

// Gender returns PID-8 verbatim.
func (m *Message) Gender() string {
	pid := m.GetSegment("PID")
	if pid == nil {
		return ""
	}
	return pid.Field(8)
}
