// Package compat implements the structural JSON Schema diff used to decide
// whether a candidate schema version is compatible with its predecessor (C5).
package compat

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/coreshift/switchyard/pkg/schema/registry"
)

// ChangeKind classifies a single structural difference between two schema
// versions.
type ChangeKind string

const (
	FieldAdded         ChangeKind = "field_added"
	FieldRemoved       ChangeKind = "field_removed"
	RequiredFieldAdded ChangeKind = "required_field_added"
	TypeChanged        ChangeKind = "type_changed"
	EnumValueRemoved   ChangeKind = "enum_value_removed"
	ConstraintNarrowed ChangeKind = "constraint_narrowed"
)

// Change describes one structural difference and which compatibility modes
// it breaks.
type Change struct {
	Kind           ChangeKind `json:"kind"`
	Field          string     `json:"field"`
	Detail         string     `json:"detail"`
	BreaksBackward bool       `json:"breaks_backward"`
	BreaksForward  bool       `json:"breaks_forward"`
}

// Result is the outcome of comparing an old schema definition against a new
// one under a given compatibility mode.
type Result struct {
	Mode       registry.Compatibility `json:"mode"`
	Compatible bool                   `json:"compatible"`
	Changes    []Change               `json:"changes,omitempty"`
}

// Check compares oldDef against newDef (both JSON Schema documents encoded
// as strings) and reports whether newDef is compatible with oldDef under
// mode. mode == CompatNone always reports compatible with the full change
// list still populated, so callers can audit even unchecked transitions.
func Check(oldDef, newDef string, mode registry.Compatibility) (Result, error) {
	oldSchema, err := parse(oldDef)
	if err != nil {
		return Result{}, fmt.Errorf("parsing previous schema: %w", err)
	}
	newSchema, err := parse(newDef)
	if err != nil {
		return Result{}, fmt.Errorf("parsing candidate schema: %w", err)
	}

	changes := diff(oldSchema, newSchema)

	result := Result{Mode: mode, Changes: changes}
	switch mode {
	case registry.CompatBackward:
		result.Compatible = !anyBreaks(changes, func(c Change) bool { return c.BreaksBackward })
	case registry.CompatForward:
		result.Compatible = !anyBreaks(changes, func(c Change) bool { return c.BreaksForward })
	case registry.CompatFull:
		result.Compatible = !anyBreaks(changes, func(c Change) bool { return c.BreaksBackward || c.BreaksForward })
	case registry.CompatNone:
		result.Compatible = true
	default:
		return Result{}, fmt.Errorf("unknown compatibility mode %q", mode)
	}

	return result, nil
}

type jsonSchema struct {
	Type       any            `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required"`
}

func parse(def string) (jsonSchema, error) {
	var s jsonSchema
	if err := json.Unmarshal([]byte(def), &s); err != nil {
		return jsonSchema{}, err
	}
	return s, nil
}

func diff(oldSchema, newSchema jsonSchema) []Change {
	var changes []Change

	oldRequired := toSet(oldSchema.Required)
	newRequired := toSet(newSchema.Required)

	fields := make(map[string]struct{})
	for f := range oldSchema.Properties {
		fields[f] = struct{}{}
	}
	for f := range newSchema.Properties {
		fields[f] = struct{}{}
	}

	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)

	for _, field := range names {
		oldProp, inOld := oldSchema.Properties[field]
		newProp, inNew := newSchema.Properties[field]

		switch {
		case inOld && !inNew:
			changes = append(changes, Change{
				Kind:   FieldRemoved,
				Field:  field,
				Detail: "field present in previous schema removed from candidate",
				// Only removing a *required* field breaks forward
				// compatibility: new readers using the old (required)
				// schema would reject data that omits it. Removing an
				// optional field is forward-compatible.
				BreaksForward: oldRequired[field],
			})
		case !inOld && inNew:
			if newRequired[field] {
				changes = append(changes, Change{
					Kind:           RequiredFieldAdded,
					Field:          field,
					Detail:         "field added as required; data written against the previous schema lacks it",
					BreaksBackward: true,
				})
			}
		default:
			changes = append(changes, compareProperty(field, oldProp, newProp)...)
			if !oldRequired[field] && newRequired[field] {
				changes = append(changes, Change{
					Kind:           RequiredFieldAdded,
					Field:          field,
					Detail:         "existing field promoted to required",
					BreaksBackward: true,
				})
			}
		}
	}

	return changes
}

func compareProperty(field string, oldProp, newProp any) []Change {
	oldMap, oldOK := oldProp.(map[string]any)
	newMap, newOK := newProp.(map[string]any)
	if !oldOK || !newOK {
		return nil
	}

	var changes []Change

	if oldType, newType := oldMap["type"], newMap["type"]; oldType != nil && newType != nil && oldType != newType {
		changes = append(changes, Change{
			Kind:           TypeChanged,
			Field:          field,
			Detail:         fmt.Sprintf("type changed from %v to %v", oldType, newType),
			BreaksBackward: true,
			BreaksForward:  true,
		})
	}

	if removed := removedEnumValues(oldMap["enum"], newMap["enum"]); len(removed) > 0 {
		changes = append(changes, Change{
			Kind:           EnumValueRemoved,
			Field:          field,
			Detail:         fmt.Sprintf("enum values no longer accepted: %v", removed),
			BreaksBackward: true,
		})
	}

	if narrowed := narrowedConstraints(oldMap, newMap); narrowed != "" {
		changes = append(changes, Change{
			Kind:           ConstraintNarrowed,
			Field:          field,
			Detail:         narrowed,
			BreaksBackward: true,
		})
	}

	return changes
}

func removedEnumValues(oldEnum, newEnum any) []any {
	oldVals, ok := oldEnum.([]any)
	if !ok {
		return nil
	}
	newVals, _ := newEnum.([]any)

	newSet := make(map[any]struct{}, len(newVals))
	for _, v := range newVals {
		newSet[v] = struct{}{}
	}

	var removed []any
	for _, v := range oldVals {
		if _, ok := newSet[v]; !ok {
			removed = append(removed, v)
		}
	}
	return removed
}

func narrowedConstraints(oldMap, newMap map[string]any) string {
	if n := numericNarrowed(oldMap, newMap, "minimum", true); n != "" {
		return n
	}
	if n := numericNarrowed(oldMap, newMap, "maximum", false); n != "" {
		return n
	}
	if n := numericNarrowed(oldMap, newMap, "minLength", true); n != "" {
		return n
	}
	if n := numericNarrowed(oldMap, newMap, "maxLength", false); n != "" {
		return n
	}
	return ""
}

// numericNarrowed reports whether constraint keyword key got stricter.
// increasingIsNarrower is true for lower-bound keywords (minimum, minLength)
// where a higher value narrows the accepted range, and false for
// upper-bound keywords (maximum, maxLength) where a lower value narrows it.
func numericNarrowed(oldMap, newMap map[string]any, key string, increasingIsNarrower bool) string {
	oldVal, oldOK := asFloat(oldMap[key])
	newVal, newOK := asFloat(newMap[key])
	if !oldOK || !newOK {
		return ""
	}

	narrowed := false
	if increasingIsNarrower && newVal > oldVal {
		narrowed = true
	}
	if !increasingIsNarrower && newVal < oldVal {
		narrowed = true
	}
	if !narrowed {
		return ""
	}
	return fmt.Sprintf("%s narrowed from %v to %v", key, oldVal, newVal)
}

func asFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func anyBreaks(changes []Change, breaks func(Change) bool) bool {
	for _, c := range changes {
		if breaks(c) {
			return true
		}
	}
	return false
}
