package schema

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind is the value type and format of one form field.
type Kind int

const (
	KindString Kind = iota
	KindEmail
	KindPhone
	KindDate
	KindNumber
	KindPercent
	KindCURP
	KindRFC
	KindCLABE
)

// Field declares one form field: which tab carries it, its value kind,
// and predicates deciding applicability and requiredness per variant.
// A nil requiredWhen means always required; a nil appliesWhen means the
// field exists in every variant of its actor type.
type Field struct {
	Name         string
	Tab          string
	Kind         Kind
	requiredWhen func(Variant) bool
	appliesWhen  func(Variant) bool
}

func (f Field) Applies(v Variant) bool {
	return f.appliesWhen == nil || f.appliesWhen(v)
}

func (f Field) Required(v Variant) bool {
	return f.requiredWhen == nil || f.requiredWhen(v)
}

// FieldError is one field-path validation failure. Validation accumulates
// every failure instead of stopping at the first.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Result is the outcome of running a schema over a record. A failed
// Result is an expected value, not an error.
type Result struct {
	OK     bool         `json:"ok"`
	Errors []FieldError `json:"errors,omitempty"`
}

func (r *Result) add(path, msg string) {
	r.OK = false
	r.Errors = append(r.Errors, FieldError{Path: path, Message: msg})
}

var (
	curpRe  = regexp.MustCompile(`^[A-Z]{4}[0-9]{6}[HM][A-Z]{5}[A-Z0-9][0-9]$`)
	rfcRe   = regexp.MustCompile(`^[A-ZÑ&]{3,4}[0-9]{6}[A-Z0-9]{3}$`)
	clabeRe = regexp.MustCompile(`^[0-9]{18}$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Present reports whether a raw JSON value is set to something non-empty.
// Empty strings count as absent so optional fields can round-trip blanks.
func Present(val any) bool {
	switch x := val.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	default:
		return true
	}
}

// CheckFormat validates a present value against the field kind. It returns
// a human-readable message, or "" when the value is acceptable.
func (f Field) CheckFormat(val any) string {
	switch f.Kind {
	case KindString:
		if _, ok := val.(string); !ok {
			return "must be a string"
		}
	case KindEmail:
		s, ok := val.(string)
		if !ok || !emailRe.MatchString(strings.TrimSpace(s)) {
			return "must be a valid email address"
		}
	case KindPhone:
		s, ok := val.(string)
		if !ok || !phoneRe.MatchString(strings.ReplaceAll(strings.TrimSpace(s), " ", "")) {
			return "must be a valid phone number"
		}
	case KindDate:
		s, ok := val.(string)
		if !ok {
			return "must be a date (YYYY-MM-DD)"
		}
		if _, err := time.Parse("2006-01-02", strings.TrimSpace(s)); err != nil {
			return "must be a date (YYYY-MM-DD)"
		}
	case KindNumber:
		if _, ok := toNumber(val); !ok {
			return "must be a number"
		}
	case KindPercent:
		n, ok := toNumber(val)
		if !ok || n < 0 || n > 100 {
			return "must be a percentage between 0 and 100"
		}
	case KindCURP:
		s, ok := val.(string)
		if !ok || !curpRe.MatchString(strings.ToUpper(strings.TrimSpace(s))) {
			return "must be a valid CURP"
		}
	case KindRFC:
		s, ok := val.(string)
		if !ok || !rfcRe.MatchString(strings.ToUpper(strings.TrimSpace(s))) {
			return "must be a valid RFC"
		}
	case KindCLABE:
		s, ok := val.(string)
		if !ok || !clabeRe.MatchString(strings.TrimSpace(s)) {
			return "must be an 18-digit CLABE"
		}
	}
	return ""
}

func toNumber(val any) (float64, bool) {
	switch x := val.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
