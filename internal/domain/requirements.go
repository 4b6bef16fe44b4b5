package domain

import "sort"

// Named requirement fields. The record is open: other keys may appear.
const (
	FieldTargetUsers       = "targetUsers"
	FieldFeatures          = "features"
	FieldTimeline          = "timeline"
	FieldBudget            = "budget"
	FieldUserInterface     = "userInterface"
	FieldDeviceFeatures    = "deviceFeatures"
	FieldHosting           = "hosting"
	FieldPerformance       = "performance"
	FieldAdditionalDetails = "additionalDetails"
)

// NamedFields lists the known fields in document order.
var NamedFields = []string{
	FieldTargetUsers,
	FieldFeatures,
	FieldTimeline,
	FieldBudget,
	FieldUserInterface,
	FieldDeviceFeatures,
	FieldHosting,
	FieldPerformance,
	FieldAdditionalDetails,
}

// Requirements maps a field name to a string or bool value. Keys are never
// removed once present.
type Requirements map[string]any

// Clone returns a shallow copy; values are immutable scalars.
func (r Requirements) Clone() Requirements {
	out := make(Requirements, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Text returns the string value of field, if it holds one.
func (r Requirements) Text(field string) (string, bool) {
	s, ok := r[field].(string)
	return s, ok
}

// Keys returns the record's field names: named fields first in document
// order, then any others sorted alphabetically.
func (r Requirements) Keys() []string {
	keys := make([]string, 0, len(r))
	named := make(map[string]struct{}, len(NamedFields))
	for _, f := range NamedFields {
		named[f] = struct{}{}
		if _, ok := r[f]; ok {
			keys = append(keys, f)
		}
	}
	var rest []string
	for k := range r {
		if _, ok := named[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
