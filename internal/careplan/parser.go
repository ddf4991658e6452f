// Package careplan turns a listing's stored care payload into a dated
// schedule of care reminders. Everything here is pure: no I/O, no clock.
package careplan

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultFrequencyDays spaces tasks whose own frequency is missing or not positive.
	DefaultFrequencyDays = 7
	// MaxFrequencyDays caps the gap after any single task.
	MaxFrequencyDays = 365
	legacyTitleRunes     = 40
	legacyTitleSuffix    = "..."
)

// Shape tells which of the three stored forms a care payload had.
type Shape int

const (
	ShapeEmpty Shape = iota
	ShapeStructured
	ShapeLegacy
)

func (s Shape) String() string {
	switch s {
	case ShapeEmpty:
		return "empty"
	case ShapeStructured:
		return "structured"
	case ShapeLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// ListingCareSpec is the JSON document produced by the plant analysis step.
type ListingCareSpec struct {
	ActionableTasks []ActionableTask `json:"actionable_tasks"`
	CareTips        []string         `json:"care_tips"`
}

// ActionableTask is one task as authored by the analysis step.
type ActionableTask struct {
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	FrequencyDays FrequencyDays `json:"frequency_days"`
	IsOptional    bool          `json:"is_optional"`
}

// FrequencyDays accepts integers, floats and numeric strings. Anything else decodes as 0.
type FrequencyDays int

func (f *FrequencyDays) UnmarshalJSON(b []byte) error {
	*f = 0
	s := string(bytes.TrimSpace(b))
	if s == "" || s == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n > math.MaxInt32 || n < math.MinInt32 {
		return nil
	}
	*f = FrequencyDays(int(n))
	return nil
}

// EssentialTask is a non-optional task that will be scheduled.
type EssentialTask struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	FrequencyDays int    `json:"frequency_days"`
}

// NormalizedCarePlan is the parsed form of a care payload.
type NormalizedCarePlan struct {
	EssentialTasks []EssentialTask `json:"essential_tasks"`
	AllTips        []string        `json:"all_tips"`
}

// Result is the outcome of Parse: the detected shape and the plan derived from it.
type Result struct {
	Shape Shape
	Plan  NormalizedCarePlan
}

// Parse never fails. Invalid or unexpected JSON degrades to legacy text handling.
func Parse(raw string) Result {
	if strings.TrimSpace(raw) == "" {
		return Result{Shape: ShapeEmpty}
	}
	if plan, ok := parseStructured(raw); ok {
		return Result{Shape: ShapeStructured, Plan: plan}
	}
	return Result{Shape: ShapeLegacy, Plan: parseLegacy(raw)}
}

// structuredDoc keeps the raw fields so presence can be checked separately from content.
type structuredDoc struct {
	ActionableTasks json.RawMessage `json:"actionable_tasks"`
	CareTips        json.RawMessage `json:"care_tips"`
}

func parseStructured(raw string) (plan NormalizedCarePlan, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			plan, ok = NormalizedCarePlan{}, false
		}
	}()

	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return NormalizedCarePlan{}, false
	}
	var doc structuredDoc
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return NormalizedCarePlan{}, false
	}
	if isAbsent(doc.ActionableTasks) && isAbsent(doc.CareTips) {
		return NormalizedCarePlan{}, false
	}

	var spec ListingCareSpec
	if !isAbsent(doc.ActionableTasks) {
		tasks, ok := decodeTasks(doc.ActionableTasks)
		if !ok {
			return NormalizedCarePlan{}, false
		}
		spec.ActionableTasks = tasks
	}
	if !isAbsent(doc.CareTips) {
		if err := json.Unmarshal(doc.CareTips, &spec.CareTips); err != nil {
			return NormalizedCarePlan{}, false
		}
	}
	return normalize(spec), true
}

// decodeTasks requires every element to be a JSON object. Tasks with neither
// a title nor a description are dropped.
func decodeTasks(raw json.RawMessage) ([]ActionableTask, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, false
	}
	tasks := make([]ActionableTask, 0, len(elems))
	for _, e := range elems {
		if !bytes.HasPrefix(bytes.TrimSpace(e), []byte("{")) {
			return nil, false
		}
		var task ActionableTask
		if err := json.Unmarshal(e, &task); err != nil {
			return nil, false
		}
		if strings.TrimSpace(task.Title) == "" && strings.TrimSpace(task.Description) == "" {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, true
}

func isAbsent(m json.RawMessage) bool {
	return len(m) == 0 || string(m) == "null"
}

// normalize splits tasks by IsOptional. Optional ones are rendered as tips after the original tips.
func normalize(spec ListingCareSpec) NormalizedCarePlan {
	var plan NormalizedCarePlan
	plan.AllTips = append(plan.AllTips, spec.CareTips...)
	for _, task := range spec.ActionableTasks {
		if task.IsOptional {
			plan.AllTips = append(plan.AllTips, task.Title+": "+task.Description)
			continue
		}
		plan.EssentialTasks = append(plan.EssentialTasks, EssentialTask{
			Title:         task.Title,
			Description:   task.Description,
			FrequencyDays: int(task.FrequencyDays),
		})
	}
	return plan
}

// parseLegacy treats every non-blank line as a weekly task.
func parseLegacy(raw string) NormalizedCarePlan {
	var plan NormalizedCarePlan
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		plan.EssentialTasks = append(plan.EssentialTasks, EssentialTask{
			Title:         legacyTitle(line),
			Description:   line,
			FrequencyDays: DefaultFrequencyDays,
		})
	}
	return plan
}

func legacyTitle(line string) string {
	r := []rune(line)
	if len(r) > legacyTitleRunes {
		r = r[:legacyTitleRunes]
	}
	return string(r) + legacyTitleSuffix
}
