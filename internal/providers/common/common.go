package common

import (
	"strconv"
	"strings"
)

// ToString renders loosely typed JSON scalars. Decoders are expected to use
// json.Decoder.UseNumber so that large ids keep their digits.
func ToString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case jsonNumber:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// OptionalString is ToString that keeps absence: nil and blank values
// become nil.
func OptionalString(value any) *string {
	s := strings.TrimSpace(ToString(value))
	if s == "" {
		return nil
	}
	return &s
}

// FirstString returns the first non-empty rendering among values.
func FirstString(values ...any) string {
	for _, v := range values {
		if s := ToString(v); s != "" {
			return s
		}
	}
	return ""
}

type jsonNumber interface {
	Int64() (int64, error)
	Float64() (float64, error)
	String() string
}
