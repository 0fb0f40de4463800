// Package eval implements the PIQI evaluator: it scores a FHIR bundle
// against an evaluation profile, producing pass/fail/skip verdicts, a
// weighted index, and per-step drill-down details. The evaluator never
// mutates the bundle it's given (internal/platform/fhir.Bundle is read
// through ResourcesOfType, never written).
package eval

import (
	"math"

	"github.com/piqitt/piqi/internal/piqi/extract"
	"github.com/piqitt/piqi/internal/piqi/preview"
	"github.com/piqitt/piqi/internal/piqi/profile"
	"github.com/piqitt/piqi/internal/piqi/sam"
	"github.com/piqitt/piqi/internal/platform/fhir"
)

// Detail captures one SAM execution's drill-down.
type Detail struct {
	StepID       string      `json:"stepId"`
	ResourceType string      `json:"resourceType"`
	ResourceID   string      `json:"resourceId"`
	Path         string      `json:"path"`
	SAM          string      `json:"sam"`
	Status       sam.Status  `json:"status"`
	Dimension    string      `json:"dimension"`
	Mnemonic     string      `json:"mnemonic"`
	EntityType   string      `json:"entity_type"`
	Prerequisite string      `json:"prerequisite,omitempty"`
	Severity     string      `json:"severity"`
	Values       interface{} `json:"values"`
	ValuePreview string      `json:"valuePreview,omitempty"`
}

// Result is the evaluation outcome for a single bundle.
type Result struct {
	MessageID            string   `json:"messageId,omitempty"`
	SendingFacility      string   `json:"sendingFacility,omitempty"`
	PIQIIndex            *float64 `json:"piqiIndex"`
	PIQIWeightedIndex    *float64 `json:"piqiWeightedIndex"`
	Numerator            int      `json:"numerator"`
	Denominator          int      `json:"denominator"`
	WeightedNumerator    float64  `json:"weightedNumerator"`
	WeightedDenominator  float64  `json:"weightedDenominator"`
	CriticalFailureCount int      `json:"criticalFailureCount"`
	Details              []Detail `json:"details"`
}

// Evaluator executes profile steps against bundles using a fixed,
// process-lifetime SAM registry.
type Evaluator struct {
	registry *sam.Registry
	samDefs  profile.Library
}

// New builds an Evaluator bound to the given SAM registry and library
// metadata (dimension/entity_type/prereq lookups for detail drill-downs).
func New(registry *sam.Registry, samDefs profile.Library) *Evaluator {
	return &Evaluator{registry: registry, samDefs: samDefs}
}

// Evaluate scores bundle against prof, per the algorithm in spec §4.H.
func (e *Evaluator) Evaluate(bundle *fhir.Bundle, prof profile.Profile) Result {
	messageID, sendingFacility := messageHeaderInfo(bundle)

	acc := &accumulator{}
	for _, step := range prof.Steps {
		e.runStep(bundle, step, acc)
	}

	return Result{
		MessageID:            messageID,
		SendingFacility:      sendingFacility,
		PIQIIndex:            safeIndex(acc.numerator, acc.denominator),
		PIQIWeightedIndex:    safeIndex(acc.weightedNumerator, acc.weightedDenominator),
		Numerator:            int(acc.numerator),
		Denominator:          int(acc.denominator),
		WeightedNumerator:    acc.weightedNumerator,
		WeightedDenominator:  acc.weightedDenominator,
		CriticalFailureCount: acc.criticalFailures,
		Details:              acc.details,
	}
}

type accumulator struct {
	numerator         float64
	denominator       float64
	weightedNumerator float64
	weightedDenominator float64
	criticalFailures  int
	details           []Detail
}

func messageHeaderInfo(bundle *fhir.Bundle) (messageID, sendingFacility string) {
	headers := bundle.ResourcesOfType("MessageHeader")
	if len(headers) == 0 {
		return "", ""
	}
	h := headers[0]
	messageID, _ = h["id"].(string)
	if source, ok := h["source"].(map[string]interface{}); ok {
		sendingFacility, _ = source["name"].(string)
	}
	return messageID, sendingFacility
}

func (e *Evaluator) runStep(bundle *fhir.Bundle, step profile.Step, acc *accumulator) {
	resources := bundle.ResourcesOfType(step.Resource)
	if len(resources) == 0 {
		return
	}

	for _, res := range resources {
		if step.Condition != nil && !e.conditionPasses(res, step) {
			continue
		}

		values := e.extractValues(res, step.Path)
		if len(values) == 0 {
			values = []interface{}{nil}
		}

		for _, v := range values {
			e.runValue(res, step, v, acc)
		}
	}
}

func (e *Evaluator) conditionPasses(res map[string]interface{}, step profile.Step) bool {
	val := firstOrNil(e.extractValues(res, step.Path))
	status := e.run(step.Condition.SAM, val, res, step.Condition.Params)
	return status == sam.Pass
}

func (e *Evaluator) runValue(res map[string]interface{}, step profile.Step, v interface{}, acc *accumulator) {
	stepDef, hasStepDef := e.samDefs[step.SAM]

	if hasStepDef && stepDef.Prereq != "" {
		prereqStatus := e.run(stepDef.Prereq, v, res, step.Params)
		switch prereqStatus {
		case sam.Skip:
			return
		case sam.Fail:
			acc.denominator++
			acc.weightedDenominator += step.Weight
			if step.Effect == profile.EffectScoring {
				acc.details = append(acc.details, e.detail(step, res, v, stepDef.Prereq, sam.Fail))
				if step.Critical {
					acc.criticalFailures++
				}
			}
			return
		}
	}

	status := e.run(step.SAM, v, res, step.Params)

	if status == sam.Skip {
		if step.Effect == profile.EffectScoring {
			acc.details = append(acc.details, e.detail(step, res, v, step.SAM, sam.Skip))
		}
		return
	}

	acc.denominator++
	acc.weightedDenominator += step.Weight
	if status == sam.Pass {
		acc.numerator++
		acc.weightedNumerator += step.Weight
	}
	if step.Effect == profile.EffectScoring {
		acc.details = append(acc.details, e.detail(step, res, v, step.SAM, status))
		if step.Critical && status == sam.Fail {
			acc.criticalFailures++
		}
	}
}

// extractValues is the Observation "value[x]" special case plus the general
// path walker.
func (e *Evaluator) extractValues(res map[string]interface{}, path string) []interface{} {
	if rt, _ := res["resourceType"].(string); rt == "Observation" && path == "value[x]" {
		var out []interface{}
		for _, k := range []string{"valueQuantity", "valueString", "valueCodeableConcept", "valueDateTime"} {
			if v, ok := res[k]; ok {
				out = append(out, v)
			}
		}
		return out
	}
	return extract.Walk(res, path)
}

// run dispatches a SAM by mnemonic, handing whole-Observation SAMs the
// resource itself rather than the extracted value. An unknown mnemonic
// yields SKIP (the ConfigError path at evaluation time).
func (e *Evaluator) run(mnemonic string, value interface{}, res map[string]interface{}, params map[string]interface{}) sam.Status {
	entry, ok := e.registry.Lookup(mnemonic)
	if !ok {
		return sam.Skip
	}
	if entry.WholeResource {
		return entry.Fn(res, params)
	}
	return entry.Fn(value, params)
}

func (e *Evaluator) detail(step profile.Step, res map[string]interface{}, value interface{}, mnemonic string, status sam.Status) Detail {
	def := e.samDefs[mnemonic]
	resourceID, _ := res["id"].(string)
	resourceType, _ := res["resourceType"].(string)

	severity := "standard"
	if step.Critical {
		severity = "critical"
	}

	return Detail{
		StepID:       step.ID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Path:         step.Path,
		SAM:          mnemonic,
		Status:       status,
		Dimension:    def.Dimension,
		Mnemonic:     def.Mnemonic,
		EntityType:   def.EntityType,
		Prerequisite: def.Prereq,
		Severity:     severity,
		Values:       value,
		ValuePreview: preview.Preview(value),
	}
}

func firstOrNil(values []interface{}) interface{} {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}

// safeIndex computes 100*num/den rounded to two decimal places
// half-away-from-zero, or nil when den is zero.
func safeIndex(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	idx := 100 * num / den
	rounded := roundHalfAwayFromZero(idx, 2)
	return &rounded
}

func roundHalfAwayFromZero(v float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	if v >= 0 {
		return math.Floor(v*mult+0.5) / mult
	}
	return math.Ceil(v*mult-0.5) / mult
}
