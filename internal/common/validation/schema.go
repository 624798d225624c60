// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"certificate-workers/pkg/registry"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validator holds compiled input schemas keyed by Zeebe job type.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewValidator compiles the inputSchema of every activity in reg. Activities without a schema
// accept any variables.
func NewValidator(reg *registry.ActivityRegistry) (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema)}
	if reg == nil {
		return v, nil
	}
	for _, a := range reg.Activities {
		if len(a.InputSchema) == 0 {
			continue
		}
		s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(a.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("compile input schema for %s: %w", a.TaskType, err)
		}
		v.schemas[a.TaskType] = s
	}
	return v, nil
}

// Validate checks raw job variables against the schema registered for taskType.
func (v *Validator) Validate(taskType string, variables []byte) *ValidationResult {
	schema, ok := v.schemas[taskType]
	if !ok {
		return &ValidationResult{Valid: true}
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(variables))
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(root)",
			Message: err.Error(),
			Code:    "INVALID_JSON",
		}}}
	}
	return fromResult(result)
}

// ValidateInput validates a decoded document against an inline JSON schema.
func ValidateInput(input map[string]interface{}, schema map[string]interface{}) *ValidationResult {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(input))
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(root)",
			Message: err.Error(),
			Code:    "INVALID_SCHEMA",
		}}}
	}
	return fromResult(result)
}

func fromResult(result *gojsonschema.Result) *ValidationResult {
	out := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   e.Field(),
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	return out
}

// ValidateRegistry checks naming, uniqueness and schema compilation for every activity.
func ValidateRegistry(reg *registry.ActivityRegistry) []error {
	var errs []error
	seenID := map[string]bool{}
	seenTask := map[string]bool{}

	for _, a := range reg.Activities {
		if err := ValidateActivityNaming(a.ID); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.ID, err))
		}
		if seenID[a.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate activity id", a.ID))
		}
		if a.TaskType == "" {
			errs = append(errs, fmt.Errorf("%s: taskType is required", a.ID))
		} else if seenTask[a.TaskType] {
			errs = append(errs, fmt.Errorf("%s: duplicate taskType %s", a.ID, a.TaskType))
		}
		seenID[a.ID] = true
		seenTask[a.TaskType] = true

		for name, s := range map[string]map[string]interface{}{"inputSchema": a.InputSchema, "outputSchema": a.OutputSchema} {
			if len(s) == 0 {
				continue
			}
			if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s)); err != nil {
				errs = append(errs, fmt.Errorf("%s: %s: %w", a.ID, name, err))
			}
		}
	}
	return errs
}

var activityNamePattern = regexp.MustCompile(`^[a-z]+\.[a-z]+\.[a-z]+$`)

// ValidateActivityNaming validates activity ID follows naming convention
func ValidateActivityNaming(activityId string) error {
	if !activityNamePattern.MatchString(activityId) {
		return fmt.Errorf("activity ID must follow format: domain.subdomain.action (e.g., certificate.lifecycle.issue)")
	}
	return nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s\-\(\)]{10,}$`)
)

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePhone validates basic phone number format
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}
