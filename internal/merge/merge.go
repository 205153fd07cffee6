// Package merge implements the deep-merge used to resolve seed overrides
// against base story artifacts. It operates on JSON-like trees as produced
// by encoding/json: map[string]any, []any, and scalar leaves.
package merge

import "reflect"

// Merge combines base and override recursively. Two maps merge key-wise,
// two slices union with base ordering winning for shared elements, and any
// other combination resolves to the override value. Merge is total over
// valid JSON trees and never mutates its inputs.
func Merge(base, override any) any {
	switch b := base.(type) {
	case map[string]any:
		if o, ok := override.(map[string]any); ok {
			return mergeMaps(b, o)
		}
	case []any:
		if o, ok := override.([]any); ok {
			return mergeSlices(b, o)
		}
	}
	return override
}

func mergeMaps(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for key, value := range base {
		if ov, ok := override[key]; ok {
			merged[key] = Merge(value, ov)
		} else {
			merged[key] = value
		}
	}
	for key, value := range override {
		if _, ok := base[key]; !ok {
			merged[key] = value
		}
	}
	return merged
}

func mergeSlices(base, override []any) []any {
	result := make([]any, 0, len(base)+len(override))
	for _, item := range append(append([]any{}, base...), override...) {
		if !containsEqual(result, item) {
			result = append(result, item)
		}
	}
	return result
}

func containsEqual(items []any, candidate any) bool {
	for _, existing := range items {
		if reflect.DeepEqual(existing, candidate) {
			return true
		}
	}
	return false
}
