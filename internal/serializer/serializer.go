// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package serializer reduces the records returned by external sources to values that
// encoding/json can marshal without losing information.
package serializer

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Set is implemented by set-valued fields. The order of the returned members is not relevant.
type Set interface {
	Members() []any
}

// SerializationError reports a value whose type cannot be reduced to JSON.
type SerializationError struct {
	Type string
}

func (e *SerializationError) Error() string {
	return "object of type " + e.Type + " is not JSON serializable"
}

var (
	decimalType  = reflect.TypeFor[decimal.Decimal]()
	dateType     = reflect.TypeFor[civil.Date]()
	dateTimeType = reflect.TypeFor[civil.DateTime]()
	timeType     = reflect.TypeFor[time.Time]()
	setType      = reflect.TypeFor[Set]()
)

// Marshal normalizes value and returns its JSON encoding.
func Marshal(value any) (string, error) {
	normalized, err := Normalize(value)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// Normalize converts value into a tree of JSON compatible values:
// structs become maps of their exported fields, decimals their exact string,
// sets a list of their members, and dates and times an ISO-8601 string.
func Normalize(value any) (any, error) {
	return normalize(reflect.ValueOf(value))
}

func normalize(v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return normalize(v.Elem())
	case reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		if v.Type().Implements(setType) {
			return normalizeSet(v.Interface().(Set))
		}
		return normalize(v.Elem())
	}

	switch v.Type() {
	case decimalType:
		return decimalString(v.Interface().(decimal.Decimal)), nil
	case dateType:
		return v.Interface().(civil.Date).String(), nil
	case dateTimeType:
		return v.Interface().(civil.DateTime).String(), nil
	case timeType:
		return v.Interface().(time.Time).Format(time.RFC3339Nano), nil
	}

	if v.Type().Implements(setType) {
		return normalizeSet(v.Interface().(Set))
	}

	switch v.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.String:
		return v.Interface(), nil
	case reflect.Float32, reflect.Float64:
		if f := v.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &SerializationError{Type: v.Type().String() + " " + strconv.FormatFloat(f, 'g', -1, 64)}
		}
		return v.Interface(), nil
	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		return normalizeList(v)
	case reflect.Array:
		return normalizeList(v)
	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		return normalizeMap(v)
	case reflect.Struct:
		fields := make(map[string]any, v.NumField())
		if err := normalizeStruct(v, fields); err != nil {
			return nil, err
		}
		return fields, nil
	default:
		return nil, &SerializationError{Type: v.Type().String()}
	}
}

// decimalString keeps the trailing zeros of the original representation, so 12.50 stays "12.50".
func decimalString(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}

	return d.String()
}

func normalizeSet(set Set) (any, error) {
	members := set.Members()
	list := make([]any, 0, len(members))
	for _, member := range members {
		normalized, err := normalize(reflect.ValueOf(member))
		if err != nil {
			return nil, err
		}
		list = append(list, normalized)
	}

	return list, nil
}

func normalizeList(v reflect.Value) (any, error) {
	list := make([]any, v.Len())
	for i := range v.Len() {
		normalized, err := normalize(v.Index(i))
		if err != nil {
			return nil, err
		}
		list[i] = normalized
	}

	return list, nil
}

func normalizeMap(v reflect.Value) (any, error) {
	values := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key, ok := mapKey(iter.Key())
		if !ok {
			return nil, &SerializationError{Type: v.Type().String()}
		}

		normalized, err := normalize(iter.Value())
		if err != nil {
			return nil, err
		}
		values[key] = normalized
	}

	return values, nil
}

// mapKey returns the JSON object key for key, only strings and integers are allowed.
func mapKey(key reflect.Value) (string, bool) {
	switch key.Kind() {
	case reflect.String:
		return key.String(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(key.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(key.Uint(), 10), true
	default:
		return "", false
	}
}

// normalizeStruct writes the exported fields of v into fields, using the json tag name when present.
// Untagged embedded structs are flattened into their parent like encoding/json does.
func normalizeStruct(v reflect.Value, fields map[string]any) error {
	structType := v.Type()
	for i := range structType.NumField() {
		field := structType.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")

		fieldValue := v.Field(i)
		if field.Anonymous && name == "" && embeddedStruct(fieldValue) {
			if fieldValue.Kind() == reflect.Pointer {
				if fieldValue.IsNil() {
					continue
				}
				fieldValue = fieldValue.Elem()
			}

			if err := normalizeStruct(fieldValue, fields); err != nil {
				return err
			}
			continue
		}

		if name == "" {
			name = field.Name
		}

		normalized, err := normalize(fieldValue)
		if err != nil {
			return err
		}
		fields[name] = normalized
	}

	return nil
}

// embeddedStruct reports whether an embedded field must be flattened instead of reduced to a single value.
func embeddedStruct(v reflect.Value) bool {
	t := v.Type()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct || t.Implements(setType) || reflect.PointerTo(t).Implements(setType) {
		return false
	}

	switch t {
	case decimalType, dateType, dateTimeType, timeType:
		return false
	}

	return true
}
