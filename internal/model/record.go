package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// RawRecord is one row from the capacity register datastore.
// The schema is not fixed: fields come and go depending on what the
// publisher filled in, and values arrive as JSON strings, numbers or null.
type RawRecord map[string]any

// FieldState reports what happened when a field was read as a number.
type FieldState int

const (
	FieldNumeric     FieldState = iota // present and parsed
	FieldAbsent                        // missing or null
	FieldUnparseable                   // present but not a number ("N/A", "", ...)
)

func (s FieldState) String() string {
	switch s {
	case FieldNumeric:
		return "numeric"
	case FieldAbsent:
		return "absent"
	case FieldUnparseable:
		return "unparseable"
	default:
		return fmt.Sprintf("FieldState(%d)", int(s))
	}
}

// Lookup returns the value stored under field. Publishers are inconsistent
// about capitalisation ("Postcode" vs "postcode"), so an exact match is tried
// first and a case-insensitive one second. When several keys differ only in
// case, the first in sorted order wins.
func (r RawRecord) Lookup(field string) (any, bool) {
	if v, ok := r[field]; ok {
		return v, true
	}
	match, found := "", false
	for k := range r {
		if strings.EqualFold(k, field) && (!found || k < match) {
			match, found = k, true
		}
	}
	if !found {
		return nil, false
	}
	return r[match], true
}

// Number reads field as a float64. Only FieldNumeric carries a usable value.
func (r RawRecord) Number(field string) (float64, FieldState) {
	v, ok := r.Lookup(field)
	if !ok || v == nil {
		return 0, FieldAbsent
	}
	return CoerceNumber(v)
}

// Text reads field as a string. Numbers are formatted; absent and null fields
// report ok=false.
func (r RawRecord) Text(field string) (string, bool) {
	v, ok := r.Lookup(field)
	if !ok || v == nil {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	default:
		return fmt.Sprint(x), true
	}
}

// CoerceNumber converts a dynamically typed value to a float64.
// Strings may carry thousands separators ("1,234.5") and surrounding spaces.
// NaN and Inf are rejected so they never reach a sum.
func CoerceNumber(v any) (float64, FieldState) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, FieldAbsent
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, FieldUnparseable
		}
		f = parsed
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, ",", ""))
		if s == "" {
			return 0, FieldUnparseable
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, FieldUnparseable
		}
		f = parsed
	default:
		return 0, FieldUnparseable
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, FieldUnparseable
	}
	return f, FieldNumeric
}

// Key returns a canonical identity for the record built from its sorted
// field/value pairs. Two records have the same key iff they hold the same
// fields with the same values.
func (r RawRecord) Key() string {
	fields := make([]string, 0, len(r))
	for k := range r {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	var b strings.Builder
	for _, k := range fields {
		b.WriteString(strconv.Quote(k))
		b.WriteByte('=')
		b.WriteString(canonicalValue(r[k]))
		b.WriteByte(';')
	}
	return b.String()
}

func canonicalValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case float64:
		return "n:" + strconv.FormatFloat(x, 'g', -1, 64)
	case json.Number:
		return "n:" + x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		// Nested values are rare in the datastore; json gives a stable form
		// because encoding/json sorts map keys.
		raw, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%T:%v", x, x)
		}
		return string(raw)
	}
}

// ClassifiedRecord pairs a record with its region flag. The record itself is
// never modified by classification.
type ClassifiedRecord struct {
	Record   RawRecord
	InRegion bool
}
