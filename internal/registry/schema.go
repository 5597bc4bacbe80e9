package registry

import (
	"fmt"
	"regexp"
)

var nameRE = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidationResult carries the two severities the schema check produces:
// warnings are non-fatal, errors reject registration.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// OK reports whether the description may be registered.
func (v ValidationResult) OK() bool { return len(v.Errors) == 0 }

// ValidateDescription runs the structural schema check described in
// spec.md §4.2: required fields present, name matches the slug pattern,
// schemaVersion pinned at 1, declared arrays well-formed.
func ValidateDescription(d Description) ValidationResult {
	var res ValidationResult

	if d.SchemaVersion != 1 {
		res.Errors = append(res.Errors, fmt.Sprintf("schemaVersion must be 1, got %d", d.SchemaVersion))
	}
	if d.Name == "" {
		res.Errors = append(res.Errors, "name is required")
	} else if !nameRE.MatchString(d.Name) {
		res.Errors = append(res.Errors, fmt.Sprintf("name %q must match ^[a-z0-9-]+$", d.Name))
	}
	if d.DisplayName == "" {
		res.Warnings = append(res.Warnings, "displayName is empty")
	}
	if d.Version == "" {
		res.Errors = append(res.Errors, "version is required")
	}
	if d.Category == "" {
		res.Warnings = append(res.Warnings, "category is empty")
	}
	if d.Inputs == nil {
		res.Warnings = append(res.Warnings, "inputs is nil, treated as empty")
	}
	if d.Outputs == nil {
		res.Warnings = append(res.Warnings, "outputs is nil, treated as empty")
	}
	if d.Properties == nil {
		res.Warnings = append(res.Warnings, "properties is nil, treated as empty")
	}

	for i, p := range d.Inputs {
		if p.Name == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("inputs[%d]: name is required", i))
		}
		if !validSemanticType(p.Type) {
			res.Errors = append(res.Errors, fmt.Sprintf("inputs[%d]: unknown type %q", i, p.Type))
		}
	}
	for i, p := range d.Outputs {
		if p.Name == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("outputs[%d]: name is required", i))
		}
		if !validSemanticType(p.Type) {
			res.Errors = append(res.Errors, fmt.Sprintf("outputs[%d]: unknown type %q", i, p.Type))
		}
	}
	for i, p := range d.Properties {
		if p.Name == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("properties[%d]: name is required", i))
		}
	}

	return res
}

func validSemanticType(t SemanticType) bool {
	switch t {
	case TypeNumber, TypeBoolean, TypeMain, TypeAny:
		return true
	default:
		return false
	}
}
