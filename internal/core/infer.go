package core

import "strings"

// InferenceSampleSize is how many non-empty values are inspected per column.
const InferenceSampleSize = 100

// InferFieldType picks a type for a field without a declared one.
//
// Contact-style names (email, phone, url) decide first, since phone numbers
// would otherwise parse as numbers. Then sampled values decide: if every
// sample parses as a number the field is a number, then boolean, then date,
// otherwise string. A column with no samples falls back to the name alone.
func InferFieldType(name string, samples []string) FieldType {
	var vals []string
	for _, s := range samples {
		if s = strings.TrimSpace(s); s != "" {
			vals = append(vals, s)
		}
		if len(vals) == InferenceSampleSize {
			break
		}
	}

	hint := typeFromName(name)
	switch hint {
	case FieldEmail, FieldPhone, FieldURL:
		return hint
	}
	if len(vals) == 0 {
		return hint
	}

	switch {
	case allMatch(vals, func(v string) bool { return ToPgNumeric(v).Valid }):
		return FieldNumber
	case allMatch(vals, func(v string) bool { return ToPgBool(v).Valid }):
		return FieldBoolean
	case allMatch(vals, func(v string) bool { return ToPgDate(v).Valid }):
		return FieldDate
	default:
		return FieldString
	}
}

func allMatch(vals []string, ok func(string) bool) bool {
	for _, v := range vals {
		if !ok(v) {
			return false
		}
	}
	return true
}

// typeFromName maps common field names to a type.
func typeFromName(name string) FieldType {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "email"):
		return FieldEmail
	case strings.Contains(n, "phone"):
		return FieldPhone
	case strings.Contains(n, "url") || strings.Contains(n, "website"):
		return FieldURL
	case strings.Contains(n, "date") || strings.Contains(n, "dob"):
		return FieldDate
	case strings.Contains(n, "age") || strings.Contains(n, "number") || strings.Contains(n, "count"):
		return FieldNumber
	default:
		return FieldString
	}
}
