package util

import (
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"
)

// CyclePlaceholder replaces a value that refers back to one of its ancestors.
const CyclePlaceholder = "<cycle>"

// visitSet tracks the maps, slices and pointers on the current descent path.
// Only ancestors are tracked, so shared but acyclic references are copied
// independently.
type visitSet map[uintptr]struct{}

// SanitizeMap returns a deep copy of m whose values are all JSON-encodable.
// A nil map stays nil so missing payloads serialize as null.
func SanitizeMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out, _ := sanitize(reflect.ValueOf(m), make(visitSet)).(map[string]interface{})
	return out
}

// Sanitize converts an arbitrary value into JSON-safe primitives: nil, bool,
// numbers, strings, []interface{} and map[string]interface{}. Values that are
// already JSON-native pass through unchanged in content; containers are
// always copied so the result shares no mutable state with src.
func Sanitize(src interface{}) interface{} {
	if src == nil {
		return nil
	}
	return sanitize(reflect.ValueOf(src), make(visitSet))
}

func sanitize(v reflect.Value, seen visitSet) interface{} {
	if !v.IsValid() {
		return nil
	}

	// Fast path for the shapes produced by JSON decoders.
	switch t := v.Interface().(type) {
	case string:
		return t
	case bool:
		return t
	case json.Number:
		return t
	case float64:
		return finiteOrString(t)
	case float32:
		return finiteOrString(float64(t))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return t
	case []byte:
		return strings.ToValidUTF8(string(t), string(utf8.RuneError))
	case error:
		return t.Error()
	case json.Marshaler:
		if isNilPointer(v) {
			return nil
		}
		if b, err := t.MarshalJSON(); err != nil || !json.Valid(b) {
			return fmt.Sprint(t)
		}
		return t
	case encoding.TextMarshaler:
		if isNilPointer(v) {
			return nil
		}
		text, err := t.MarshalText()
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(text)
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return sanitize(v.Elem(), seen)

	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		return withVisit(v, seen, func() interface{} { return sanitize(v.Elem(), seen) })

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		return withVisit(v, seen, func() interface{} {
			out := make(map[string]interface{}, v.Len())
			iter := v.MapRange()
			for iter.Next() {
				out[mapKey(iter.Key())] = sanitize(iter.Value(), seen)
			}
			return out
		})

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		return withVisit(v, seen, func() interface{} { return sanitizeList(v, seen) })

	case reflect.Array:
		return sanitizeList(v, seen)

	case reflect.Struct:
		return sanitizeStruct(v, seen)

	case reflect.String:
		return v.String()
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		return finiteOrString(v.Float())
	}

	// Channels, funcs, complex numbers and unsafe pointers have no JSON form.
	return fmt.Sprint(v.Interface())
}

// withVisit runs fn with v marked as an ancestor, or returns the cycle
// placeholder if v is already on the descent path.
func withVisit(v reflect.Value, seen visitSet, fn func() interface{}) interface{} {
	addr := v.Pointer()
	if addr != 0 {
		if _, cyclic := seen[addr]; cyclic {
			return CyclePlaceholder
		}
		seen[addr] = struct{}{}
		defer delete(seen, addr)
	}
	return fn()
}

func sanitizeList(v reflect.Value, seen visitSet) []interface{} {
	out := make([]interface{}, v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = sanitize(v.Index(i), seen)
	}
	return out
}

// sanitizeStruct maps exported fields, honouring json tag names and "-".
func sanitizeStruct(v reflect.Value, seen visitSet) map[string]interface{} {
	t := v.Type()
	out := make(map[string]interface{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		out[name] = sanitize(v.Field(i), seen)
	}
	return out
}

func mapKey(k reflect.Value) string {
	switch k.Kind() {
	case reflect.String:
		return k.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(k.Uint(), 10)
	}
	return fmt.Sprint(k.Interface())
}

// finiteOrString keeps finite floats and renders NaN/Inf as strings, which
// encoding/json would otherwise reject.
func finiteOrString(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return f
}

func isNilPointer(v reflect.Value) bool {
	return v.Kind() == reflect.Ptr && v.IsNil()
}
