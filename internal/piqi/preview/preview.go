// Package preview renders a compact human-readable preview of a value
// extracted from a FHIR resource. The evaluator uses it to fill each
// detail's valuePreview.
package preview

import (
	"encoding/json"
	"fmt"
	"strings"
)

const maxLen = 120

// Preview returns a concise rendering of value, or "" if value is nil or
// empty. Recognizes FHIR primitives, Quantity/Coding/CodeableConcept-shaped
// maps, Range-like maps, Observation value[x] maps, and lists (first three
// elements). Anything else falls back to compact JSON.
func Preview(value interface{}) string {
	return preview(value, maxLen)
}

func preview(value interface{}, budget int) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return trunc(v, budget)
	case int, int32, int64, float32, float64:
		return trunc(fmt.Sprintf("%v", v), budget)
	case bool:
		return trunc(fmt.Sprintf("%v", v), budget)
	case []interface{}:
		return previewList(v, budget)
	case map[string]interface{}:
		return previewMap(v, budget)
	default:
		return previewFallback(value, budget)
	}
}

func previewMap(m map[string]interface{}, budget int) string {
	if isQuantityLike(m) {
		val := m["value"]
		unit := firstNonEmptyString(m["unit"], m["code"])
		return trunc(strings.TrimSpace(fmt.Sprintf("%v %s", val, unit)), budget)
	}

	if isCodingLike(m) {
		return previewCoding(m, budget)
	}

	if codings, ok := m["coding"]; ok {
		if list, ok := codings.([]interface{}); ok && len(list) > 0 {
			if first, ok := list[0].(map[string]interface{}); ok {
				return preview(first, budget)
			}
		}
		if text, ok := m["text"].(string); ok && text != "" {
			return trunc(text, budget)
		}
		return ""
	}

	if isRangeLike(m) {
		low := firstNonNil(m["low"], m["lowValue"])
		high := firstNonNil(m["high"], m["highValue"])
		if low != nil || high != nil {
			return trunc(fmt.Sprintf("%s - %s", quantityPreview(low), quantityPreview(high)), budget)
		}
	}

	for _, k := range []string{"valueString", "valueDateTime"} {
		if v, ok := m[k]; ok {
			return trunc(fmt.Sprintf("%v", v), budget)
		}
	}
	if vq, ok := m["valueQuantity"]; ok {
		return preview(vq, budget)
	}
	if vcc, ok := m["valueCodeableConcept"]; ok {
		return preview(vcc, budget)
	}

	return previewFallback(m, budget)
}

func previewCoding(m map[string]interface{}, budget int) string {
	code := strings.TrimSpace(stringOf(m["code"]))
	system := strings.TrimSpace(stringOf(m["system"]))
	display := strings.TrimSpace(stringOf(m["display"]))

	base := display
	if code != "" || system != "" {
		base = code + "|" + system
	}
	if display != "" && display != base {
		return trunc(fmt.Sprintf("%s (%s)", base, display), budget)
	}
	return trunc(base, budget)
}

func previewList(list []interface{}, budget int) string {
	sub := budget / 3
	if sub < 1 {
		sub = 1
	}
	var parts []string
	for i, item := range list {
		if i >= 3 {
			break
		}
		p := preview(item, sub)
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return trunc(strings.Join(parts, "; "), budget)
}

func quantityPreview(q interface{}) string {
	m, ok := q.(map[string]interface{})
	if !ok {
		if q == nil {
			return ""
		}
		return fmt.Sprintf("%v", q)
	}
	if v, ok := m["value"]; ok {
		unit := stringOf(m["unit"])
		return strings.TrimSpace(fmt.Sprintf("%v %s", v, unit))
	}
	return fmt.Sprintf("%v", m)
}

func previewFallback(value interface{}, budget int) string {
	b, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return trunc(string(b), budget)
}

func isQuantityLike(m map[string]interface{}) bool {
	if _, ok := m["value"]; !ok {
		return false
	}
	_, hasUnit := m["unit"]
	_, hasCode := m["code"]
	_, hasSystem := m["system"]
	return hasUnit || hasCode || hasSystem
}

func isCodingLike(m map[string]interface{}) bool {
	_, hasCode := m["code"]
	_, hasSystem := m["system"]
	return hasCode || hasSystem
}

func isRangeLike(m map[string]interface{}) bool {
	for _, k := range []string{"low", "high", "lowValue", "highValue"} {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func firstNonEmptyString(vals ...interface{}) string {
	for _, v := range vals {
		if s := stringOf(v); s != "" {
			return s
		}
	}
	return ""
}

func firstNonNil(vals ...interface{}) interface{} {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func stringOf(v interface{}) string {
	s, _ := v.(string)
	return s
}

func trunc(s string, budget int) string {
	s = strings.TrimSpace(s)
	if budget <= 0 {
		budget = maxLen
	}
	if len(s) <= budget {
		return s
	}
	if budget <= 3 {
		return s[:budget]
	}
	return s[:budget-3] + "…"
}
