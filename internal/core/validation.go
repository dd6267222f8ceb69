package core

// validation.go checks participant field values against a dataset schema.
//
// Validation happens at two levels:
//  1. Key validation: every key must name a schema field
//  2. Value validation: required fields are non-empty and typed values parse
//
// Imports only enforce required fields (see DatasetBuilder); direct record
// mutations enforce both levels.

import (
	"fmt"
	"net/mail"
	"net/url"
	"sort"
	"strings"
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Field/column name
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors collects every problem found in one payload.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return "validation failed"
	case 1:
		return e[0].Error()
	}
	parts := make([]string, len(e))
	for i, ve := range e {
		parts[i] = ve.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// orNil returns nil for an empty list so callers can return it directly.
func (e ValidationErrors) orNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// ValidateValue checks a single non-empty value against its field type.
func ValidateValue(value string, field SchemaField) error {
	if value == "" {
		return nil
	}

	switch field.Type {
	case FieldNumber:
		if !ToPgNumeric(value).Valid {
			return fmt.Errorf("invalid number format")
		}
	case FieldDate:
		if !ToPgDate(value).Valid {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD or similar)")
		}
	case FieldBoolean:
		if !ToPgBool(value).Valid {
			return fmt.Errorf("must be yes/no, true/false, or 1/0")
		}
	case FieldEmail:
		if _, err := mail.ParseAddress(value); err != nil {
			return fmt.Errorf("invalid email address")
		}
	case FieldURL:
		if u, err := url.Parse(value); err != nil || u.Host == "" {
			return fmt.Errorf("invalid url")
		}
	}
	return nil
}

// NormalizeValue applies the storage form for a field type.
func NormalizeValue(value string, field SchemaField) string {
	value = strings.TrimSpace(value)
	if field.Type == FieldEmail {
		return NormalizeEmail(value)
	}
	return value
}

// validateFields checks a set of values against a schema.
//
// When partial is false, every required field must be present and non-empty.
// When partial is true, only the supplied keys are checked, and a required
// field may not be set to empty.
func validateFields(schema Schema, fields map[string]string, partial bool) error {
	var errs ValidationErrors

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		f, ok := schema.Field(k)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   k,
				Message: "unknown field, not part of the dataset schema",
			})
			continue
		}
		v := strings.TrimSpace(fields[k])
		if v == "" && f.Required {
			errs = append(errs, ValidationError{Field: k, Message: "required field is empty"})
			continue
		}
		if err := ValidateValue(v, f); err != nil {
			errs = append(errs, ValidationError{Field: k, Value: v, Message: err.Error()})
		}
	}

	if !partial {
		for _, f := range schema.Fields {
			if !f.Required {
				continue
			}
			if _, ok := fields[f.Name]; !ok {
				errs = append(errs, ValidationError{Field: f.Name, Message: "required field is empty"})
			}
		}
	}

	return errs.orNil()
}

// normalizeFields returns a copy of fields in storage form.
func normalizeFields(schema Schema, fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		f, _ := schema.Field(k)
		out[k] = NormalizeValue(v, f)
	}
	return out
}
