package httpx

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.AmericanEnglish)

// FromValidationErrors converts validator output into a single 400
// error listing every failing field.
func FromValidationErrors(errs validator.ValidationErrors) *Error {
	fields := make([]FieldError, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, FieldError{
			Path:    []string{fieldKey(fe.Field())},
			Message: fieldMessage(fe),
		})
	}
	return Validation("", fields...)
}

func fieldMessage(fe validator.FieldError) string {
	label := fieldLabel(fe.Field())
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return label + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "e164":
		return label + " must be a valid phone number"
	case "datetime":
		return label + " must be a valid timestamp"
	case "gtfield":
		return fmt.Sprintf("%s must be after %s", label, fieldLabel(fe.Param()))
	default:
		return label + " is invalid"
	}
}

// fieldKey lowercases the leading rune so struct field names line up
// with their JSON keys.
func fieldKey(field string) string {
	if field == "" {
		return field
	}
	runes := []rune(field)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// fieldLabel turns a DTO field name into a readable label, e.g.
// "FirstName" -> "First name".
func fieldLabel(field string) string {
	words := splitCamel(field)
	if len(words) == 0 {
		return field
	}
	words[0] = titleCaser.String(words[0])
	return strings.Join(words, " ")
}

func splitCamel(s string) []string {
	var words []string
	var current strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) && i > 0 {
			words = append(words, strings.ToLower(current.String()))
			current.Reset()
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		words = append(words, strings.ToLower(current.String()))
	}
	return words
}
