// Package sam implements the PIQI SAM (Simple Assessment Method) registry:
// a set of pure pass/fail/skip primitives keyed by mnemonic. Per the spec's
// design notes, Observation-scoped SAMs are flagged at registration time so
// the evaluator can hand them the whole resource instead of an extracted
// value, and the plausibility config is bound via closure at registry
// construction rather than threaded through per-call params.
package sam

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/piqitt/piqi/internal/refdata"
)

// Status is the outcome of running a SAM.
type Status string

const (
	Pass Status = "PASS"
	Fail Status = "FAIL"
	Skip Status = "SKIP"
)

// Func evaluates one SAM against a value (or, for whole-resource SAMs, the
// owning Observation map) and a params map taken from the profile step.
type Func func(value interface{}, params map[string]interface{}) Status

// Entry is a registered SAM: its dispatchable function plus whether the
// evaluator must hand it the whole resource rather than an extracted value.
type Entry struct {
	Mnemonic      string
	WholeResource bool
	Fn            Func
}

// Registry is the mnemonic -> Entry dispatch table built once per process
// and treated as immutable thereafter.
type Registry struct {
	entries map[string]Entry
}

// Lookup returns the entry for mnemonic, or ok=false when no such SAM is
// registered (an unknown mnemonic at evaluation time yields SKIP per the
// spec's ConfigError handling, not a hard failure).
func (r *Registry) Lookup(mnemonic string) (Entry, bool) {
	e, ok := r.entries[mnemonic]
	return e, ok
}

// NewRegistry builds the full SAM dispatch table. valueSets maps a system
// mnemonic ("LOINC", "CPT", ...) to its uppercased member-code set, and
// plausibility supplies the by_loinc/by_class unit and range bounds that
// Observation_UnitAllowed/Observation_ValueWithinRange consult.
func NewRegistry(plausibility *refdata.Plausibility, valueSets map[string]map[string]bool) *Registry {
	if plausibility == nil {
		plausibility = &refdata.Plausibility{}
	}
	if valueSets == nil {
		valueSets = map[string]map[string]bool{}
	}

	r := &Registry{entries: map[string]Entry{}}
	r.register("Attr_IsPopulated", false, attrIsPopulated)
	r.register("Attr_IsNumeric", false, attrIsNumeric)
	r.register("Attr_IsDate", false, attrIsDate)
	r.register("Concept_HasCode", false, conceptHasCode)
	r.register("Concept_IsValidMember", false, func(value interface{}, params map[string]interface{}) Status {
		return conceptIsValidMember(value, params, valueSets)
	})
	r.register("ObservationValue_IsNumeric", false, observationValueIsNumeric)
	r.register("RangeValue_IsComplete", false, rangeValueIsComplete)
	r.register("LabResult_ValueIsPlausible", true, labResultValueIsPlausible)
	r.register("Observation_UnitAllowed", true, func(value interface{}, params map[string]interface{}) Status {
		return observationUnitAllowed(value, plausibility)
	})
	r.register("Observation_ValueWithinRange", true, func(value interface{}, params map[string]interface{}) Status {
		return observationValueWithinRange(value, plausibility)
	})
	return r
}

func (r *Registry) register(mnemonic string, wholeResource bool, fn Func) {
	r.entries[mnemonic] = Entry{Mnemonic: mnemonic, WholeResource: wholeResource, Fn: fn}
}

func asMap(value interface{}) (map[string]interface{}, bool) {
	m, ok := value.(map[string]interface{})
	return m, ok
}

func safeFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func isEmptyValue(value interface{}) bool {
	if value == nil {
		return true
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) == ""
	case []interface{}:
		return len(v) == 0
	}
	return false
}

func attrIsPopulated(value interface{}, params map[string]interface{}) Status {
	if isEmptyValue(value) {
		return Fail
	}
	return Pass
}

func attrIsNumeric(value interface{}, params map[string]interface{}) Status {
	if isEmptyValue(value) {
		return Skip
	}
	if _, ok := safeFloat(value); ok {
		return Pass
	}
	return Fail
}

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func attrIsDate(value interface{}, params map[string]interface{}) Status {
	if value == nil || value == "" {
		return Skip
	}
	s, ok := value.(string)
	if !ok {
		return Fail
	}
	if isoDateRe.MatchString(s) {
		return Pass
	}
	return Fail
}

func conceptHasCode(value interface{}, params map[string]interface{}) Status {
	if value == nil {
		return Fail
	}
	m, ok := asMap(value)
	if !ok {
		return Skip
	}
	if codings, has := m["coding"]; has {
		list, _ := codings.([]interface{})
		for _, c := range list {
			cm, ok := asMap(c)
			if !ok {
				continue
			}
			if code, _ := cm["code"].(string); strings.TrimSpace(code) != "" {
				return Pass
			}
		}
		return Fail
	}
	if code, _ := m["code"].(string); strings.TrimSpace(code) != "" {
		return Pass
	}
	return Fail
}

func conceptIsValidMember(value interface{}, params map[string]interface{}, valueSets map[string]map[string]bool) Status {
	systemParam := strings.ToUpper(stringParam(params, "system"))
	allowed := valueSets[systemParam]

	isValid := func(coding map[string]interface{}) bool {
		code := strings.ToUpper(strings.TrimSpace(stringOf(coding["code"])))
		system := strings.TrimSpace(stringOf(coding["system"]))
		if systemParam == "LOINC" && !loincLike(system) {
			return false
		}
		if code == "" {
			return false
		}
		return allowed[code]
	}

	m, ok := asMap(value)
	if !ok {
		return Skip
	}
	if codings, has := m["coding"]; has {
		list, _ := codings.([]interface{})
		for _, c := range list {
			cm, ok := asMap(c)
			if ok && isValid(cm) {
				return Pass
			}
		}
		return Fail
	}
	if isValid(m) {
		return Pass
	}
	return Fail
}

func loincLike(system string) bool {
	switch strings.ToLower(strings.TrimSpace(system)) {
	case "loinc", "http://loinc.org", "urn:oid:2.16.840.1.113883.6.1", "ln":
		return true
	default:
		return false
	}
}

func stringOf(v interface{}) string {
	s, _ := v.(string)
	return s
}

func stringParam(params map[string]interface{}, key string) string {
	if params == nil {
		return ""
	}
	return stringOf(params[key])
}

func observationValueIsNumeric(value interface{}, params map[string]interface{}) Status {
	if value == nil {
		return Skip
	}
	if m, ok := asMap(value); ok {
		if v, has := m["value"]; has {
			if _, ok := safeFloat(v); ok {
				return Pass
			}
			return Fail
		}
	}
	if _, ok := safeFloat(value); ok {
		return Pass
	}
	return Fail
}

func rangeValueIsComplete(value interface{}, params map[string]interface{}) Status {
	m, ok := asMap(value)
	if !ok {
		return Skip
	}
	low := firstPresent(m, "low", "lowValue")
	high := firstPresent(m, "high", "highValue")
	if low != nil && high != nil {
		return Pass
	}
	return Fail
}

func firstPresent(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func labResultValueIsPlausible(resource interface{}, params map[string]interface{}) Status {
	obs, ok := asMap(resource)
	if !ok {
		return Skip
	}
	if !observationHasLOINCCoding(obs) {
		return Skip
	}
	vq, ok := asMap(obs["valueQuantity"])
	if !ok {
		return Skip
	}
	if _, ok := safeFloat(vq["value"]); ok {
		return Pass
	}
	return Fail
}

func observationUnitAllowed(resource interface{}, cfg *refdata.Plausibility) Status {
	obs, ok := asMap(resource)
	if !ok {
		return Skip
	}
	vq, ok := asMap(obs["valueQuantity"])
	if !ok {
		return Skip
	}
	unit := strings.TrimSpace(stringOf(vq["unit"]))
	if unit == "" {
		return Fail
	}

	bounds, found := lookupBounds(obs, cfg)
	if !found {
		return Skip
	}
	for _, u := range bounds.Units {
		if u == unit {
			return Pass
		}
	}
	return Fail
}

func observationValueWithinRange(resource interface{}, cfg *refdata.Plausibility) Status {
	obs, ok := asMap(resource)
	if !ok {
		return Skip
	}
	vq, ok := asMap(obs["valueQuantity"])
	if !ok {
		return Skip
	}
	if _, has := vq["value"]; !has {
		return Skip
	}
	val, ok := safeFloat(vq["value"])
	if !ok {
		return Fail
	}

	bounds, found := lookupBounds(obs, cfg)
	if !found {
		return Skip
	}
	if bounds.Min != nil && val < *bounds.Min {
		return Fail
	}
	if bounds.Max != nil && val > *bounds.Max {
		return Fail
	}
	return Pass
}

// lookupBounds resolves plausibility bounds for an Observation, preferring
// an exact LOINC-code match and falling back to a LOINC-class hint (not yet
// populated by the converter, so this path is presently always a miss).
func lookupBounds(obs map[string]interface{}, cfg *refdata.Plausibility) (refdata.PlausibilityBounds, bool) {
	if code, ok := observationFirstLOINCCode(obs); ok {
		if b, ok := cfg.ByLOINC[code]; ok {
			return b, true
		}
	}
	if class, ok := observationLOINCClassHint(obs); ok {
		if b, ok := cfg.ByClass[class]; ok {
			return b, true
		}
	}
	return refdata.PlausibilityBounds{}, false
}

func observationFirstLOINCCode(obs map[string]interface{}) (string, bool) {
	code, _ := asMap(obs["code"])
	codings, _ := code["coding"].([]interface{})
	for _, c := range codings {
		cm, ok := asMap(c)
		if !ok {
			continue
		}
		system := strings.ToLower(stringOf(cm["system"]))
		if strings.Contains(system, "loinc") || strings.Contains(system, "2.16.840.1.113883.6.1") {
			return stringOf(cm["code"]), true
		}
	}
	return "", false
}

func observationHasLOINCCoding(obs map[string]interface{}) bool {
	_, ok := observationFirstLOINCCode(obs)
	return ok
}

// observationLOINCClassHint is a stub for a future LOINC-class extension;
// the converter doesn't stash one today, so this always misses.
func observationLOINCClassHint(obs map[string]interface{}) (string, bool) {
	return "", false
}
