package dispatcher

import (
	"fmt"
	"strconv"
	"strings"
)

// resolvePointer walks a descriptor.op.map entry (an RFC6901-flavored
// JSON Pointer, e.g. "/domain" or "/filter/0") against args and
// returns the value found there, or ok=false if any segment is absent.
// Only the fixed-depth indexing this spec's tool descriptors actually
// use is supported: map-key and slice-index traversal, nothing more
// (see DESIGN.md for why a general pointer/query library isn't used).
func resolvePointer(args map[string]interface{}, pointer string) (interface{}, bool) {
	if pointer == "" || pointer == "/" {
		return args, true
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, false
	}

	var current interface{} = args
	for _, raw := range strings.Split(pointer[1:], "/") {
		segment := unescapeToken(raw)
		switch node := current.(type) {
		case map[string]interface{}:
			v, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = v
		case []interface{}:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func unescapeToken(tok string) string {
	tok = strings.ReplaceAll(tok, "~1", "/")
	tok = strings.ReplaceAll(tok, "~0", "~")
	return tok
}

// projectArgs resolves every entry of opMap against args, producing a
// flat paramName -> value map for the dispatcher to type-assert from.
// A pointer that resolves to nothing is simply absent from the result;
// required-parameter enforcement happens at each op handler.
func projectArgs(args map[string]interface{}, opMap map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(opMap))
	for paramName, pointer := range opMap {
		if v, ok := resolvePointer(args, pointer); ok {
			out[paramName] = v
		}
	}
	return out
}

// requireString extracts a required string parameter.
func requireString(params map[string]interface{}, name string) (string, error) {
	v, ok := params[name]
	if !ok {
		return "", &InvalidArgumentError{Parameter: name, Reason: "required"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &InvalidArgumentError{Parameter: name, Reason: fmt.Sprintf("expected string, got %T", v)}
	}
	return s, nil
}

// optionalString extracts an optional string parameter, defaulting if absent.
func optionalString(params map[string]interface{}, name, def string) string {
	v, ok := params[name]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

// requireIntSlice extracts a required []int parameter from a JSON
// array of numbers (json.Unmarshal into interface{} yields float64).
func requireIntSlice(params map[string]interface{}, name string) ([]int, error) {
	v, ok := params[name]
	if !ok {
		return nil, &InvalidArgumentError{Parameter: name, Reason: "required"}
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, &InvalidArgumentError{Parameter: name, Reason: fmt.Sprintf("expected array, got %T", v)}
	}
	out := make([]int, 0, len(raw))
	for _, item := range raw {
		n, ok := item.(float64)
		if !ok {
			return nil, &InvalidArgumentError{Parameter: name, Reason: "expected array of integers"}
		}
		out = append(out, int(n))
	}
	return out, nil
}

func optionalIntSlice(params map[string]interface{}, name string) []int {
	out, err := requireIntSlice(params, name)
	if err != nil {
		return nil
	}
	return out
}

func optionalStringSlice(params map[string]interface{}, name string) []string {
	v, ok := params[name]
	if !ok {
		return nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func optionalArray(params map[string]interface{}, name string) []interface{} {
	v, ok := params[name]
	if !ok {
		return nil
	}
	arr, _ := v.([]interface{})
	return arr
}

// optionalBool extracts an optional *bool parameter, returning nil
// when absent so callers can distinguish "not specified" from an
// explicit false (matching the original cleanup options' tri-state
// semantics).
func optionalBool(params map[string]interface{}, name string) *bool {
	v, ok := params[name]
	if !ok {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}

// optionalBoolValue extracts an optional bool parameter, defaulting if absent.
func optionalBoolValue(params map[string]interface{}, name string, def bool) bool {
	if b := optionalBool(params, name); b != nil {
		return *b
	}
	return def
}

func optionalInt(params map[string]interface{}, name string) int {
	v, ok := params[name]
	if !ok {
		return 0
	}
	n, ok := v.(float64)
	if !ok {
		return 0
	}
	return int(n)
}

func requireObject(params map[string]interface{}, name string) (map[string]interface{}, error) {
	v, ok := params[name]
	if !ok {
		return nil, &InvalidArgumentError{Parameter: name, Reason: "required"}
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, &InvalidArgumentError{Parameter: name, Reason: fmt.Sprintf("expected object, got %T", v)}
	}
	return obj, nil
}

func requireObjectSlice(params map[string]interface{}, name string) ([]map[string]interface{}, error) {
	v, ok := params[name]
	if !ok {
		return nil, &InvalidArgumentError{Parameter: name, Reason: "required"}
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, &InvalidArgumentError{Parameter: name, Reason: fmt.Sprintf("expected array, got %T", v)}
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, &InvalidArgumentError{Parameter: name, Reason: "expected array of objects"}
		}
		out = append(out, obj)
	}
	return out, nil
}
