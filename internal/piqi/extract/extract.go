// Package extract implements the PIQI evaluator's limited JSON path walker:
// dot-separated segments over a FHIR resource (map[string]interface{}),
// with an optional trailing "*" per segment to fan out across a list
// instead of returning it whole.
package extract

import "strings"

// pathSegment is either a plain key or a key whose bound value, if a list,
// should be fanned out across its elements.
type pathSegment struct {
	key  string
	star bool
}

func parsePath(path string) []pathSegment {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	segs := make([]pathSegment, 0, len(parts))
	for _, p := range parts {
		star := strings.HasSuffix(p, "*")
		key := strings.TrimSuffix(p, "*")
		segs = append(segs, pathSegment{key: key, star: star})
	}
	return segs
}

// Walk extracts all values reachable from resource by path, fanning out
// across lists encountered at starred segments (or when an intermediate
// node is itself already a list, per the spec's "arrays are traversed
// uniformly" rule). Observation's "value[x]" is special-cased by the caller
// (internal/piqi/eval), not here.
func Walk(resource map[string]interface{}, path string) []interface{} {
	if resource == nil || path == "" {
		return nil
	}

	segs := parsePath(path)
	current := []interface{}{map[string]interface{}(resource)}

	for _, seg := range segs {
		var next []interface{}
		for _, node := range current {
			next = append(next, applySegment(node, seg)...)
		}
		current = next
	}
	return current
}

// applySegment applies one path segment to a single node. Maps contribute
// their keyed value (fanned out if starred and the value is a list); lists
// apply the same key to every element that is itself a map.
func applySegment(node interface{}, seg pathSegment) []interface{} {
	var out []interface{}

	switch v := node.(type) {
	case map[string]interface{}:
		val, ok := v[seg.key]
		if !ok {
			return nil
		}
		if seg.star {
			if list, isList := asList(val); isList {
				out = append(out, list...)
				return out
			}
		}
		out = append(out, val)
	case []interface{}:
		for _, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			out = append(out, applySegment(m, seg)...)
		}
	}
	return out
}

func asList(v interface{}) ([]interface{}, bool) {
	list, ok := v.([]interface{})
	return list, ok
}
