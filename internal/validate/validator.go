// Package validate checks request fields against declarative rules and
// collects every failure into one list.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Type is the expected kind of a field value.
type Type int

const (
	Any Type = iota
	String
	Email
	Number
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Rule describes the checks applied to one field.  Checks run in the order
// required, type, min length, max length, pattern, Check.
type Rule struct {
	Required  bool
	Type      Type
	MinLength int
	MaxLength int
	Pattern   *regexp.Regexp
	// PatternMessage replaces the generic pattern failure message.
	PatternMessage string
	// Check runs last for rules a regexp cannot express.  It returns an
	// error message, or "" when the value passes.
	Check func(value string) string
}

// Field binds a rule to a field name.
type Field struct {
	Name string
	Rule Rule
}

// Schema is an ordered list of fields; errors follow declaration order.
type Schema []Field

// Result is the outcome of Validate.
type Result struct {
	IsValid bool
	Errors  []string
}

// Validate applies schema to values.  A missing field that is not required
// is skipped entirely.
func Validate(schema Schema, values map[string]any) Result {
	var errs []string
	for _, f := range schema {
		errs = append(errs, checkField(f.Name, f.Rule, values[f.Name])...)
	}
	return Result{IsValid: len(errs) == 0, Errors: errs}
}

func checkField(name string, r Rule, v any) []string {
	if isMissing(v) {
		if r.Required {
			return []string{fmt.Sprintf("%s is required", name)}
		}
		return nil
	}

	var errs []string
	s, isString := v.(string)
	switch r.Type {
	case String:
		if !isString {
			return []string{fmt.Sprintf("%s must be a string", name)}
		}
	case Email:
		if !isString || !emailPattern.MatchString(s) {
			return []string{fmt.Sprintf("%s must be a valid email address", name)}
		}
	case Number:
		if !isNumber(v) {
			return []string{fmt.Sprintf("%s must be a number", name)}
		}
		return nil
	}
	if !isString {
		return nil
	}

	n := utf8.RuneCountInString(s)
	if r.MinLength > 0 && n < r.MinLength {
		errs = append(errs, fmt.Sprintf("%s must be at least %d characters", name, r.MinLength))
	}
	if r.MaxLength > 0 && n > r.MaxLength {
		errs = append(errs, fmt.Sprintf("%s must be at most %d characters", name, r.MaxLength))
	}
	if r.Pattern != nil && !r.Pattern.MatchString(s) {
		msg := r.PatternMessage
		if msg == "" {
			msg = fmt.Sprintf("%s has an invalid format", name)
		}
		errs = append(errs, msg)
	}
	if r.Check != nil {
		if msg := r.Check(s); msg != "" {
			errs = append(errs, msg)
		}
	}
	return errs
}

func isMissing(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64, uint, uint32, uint64:
		return true
	}
	return false
}
