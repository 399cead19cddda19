package validate

import (
	"regexp"
	"strings"
	"unicode"
)

var displayNamePattern = regexp.MustCompile(`^[A-Za-z0-9 \-_.]+$`)

// RegisterSchema validates a new account.
var RegisterSchema = Schema{
	{Name: "email", Rule: Rule{Required: true, Type: Email, MaxLength: 255}},
	{Name: "password", Rule: Rule{Required: true, Type: String, MinLength: 12, MaxLength: 128, Check: passwordComplexity}},
	{Name: "displayName", Rule: Rule{
		Required:       true,
		Type:           String,
		MinLength:      2,
		MaxLength:      100,
		Pattern:        displayNamePattern,
		PatternMessage: "displayName may only contain letters, numbers, spaces, hyphens, underscores and periods",
	}},
}

// LoginSchema only checks shape.  Password strength is not re-checked at
// login so accounts created under older rules can still sign in.
var LoginSchema = Schema{
	{Name: "email", Rule: Rule{Required: true, Type: String, MaxLength: 255}},
	{Name: "password", Rule: Rule{Required: true, Type: String, MaxLength: 128}},
}

// passwordComplexity requires an upper case letter, a lower case letter, a
// digit and a character from outside those classes.
func passwordComplexity(pw string) string {
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsSpace(r):
			special = true
		}
	}
	if upper && lower && digit && special {
		return ""
	}
	var missing []string
	if !upper {
		missing = append(missing, "an uppercase letter")
	}
	if !lower {
		missing = append(missing, "a lowercase letter")
	}
	if !digit {
		missing = append(missing, "a number")
	}
	if !special {
		missing = append(missing, "a special character")
	}
	return "password must contain " + strings.Join(missing, ", ")
}
