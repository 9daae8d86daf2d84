// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

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

// Schema is a compiled JSON schema. Compilation happens once, on first use.
type Schema struct {
	source map[string]interface{}

	once     sync.Once
	compiled *gojsonschema.Schema
	err      error
}

func NewSchema(source map[string]interface{}) *Schema {
	return &Schema{source: source}
}

func (s *Schema) compile() (*gojsonschema.Schema, error) {
	s.once.Do(func() {
		s.compiled, s.err = gojsonschema.NewSchema(gojsonschema.NewGoLoader(s.source))
	})
	return s.compiled, s.err
}

// Validate checks doc, which may be any JSON-marshalable Go value.
func (s *Schema) Validate(doc interface{}) (*ValidationResult, error) {
	compiled, err := s.compile()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	result, err := compiled.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// Validate is a one-shot helper for schemas that are not reused.
func Validate(schema map[string]interface{}, doc interface{}) (*ValidationResult, error) {
	return NewSchema(schema).Validate(doc)
}

func (vr *ValidationResult) GetErrorMessages() []string {
	msgs := make([]string, 0, len(vr.Errors))
	for _, e := range vr.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return msgs
}

// Error joins all messages; empty for a valid result.
func (vr *ValidationResult) Error() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, e := range vr.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}

// ValidateRepoURL accepts absolute http(s) URLs with a host.
func ValidateRepoURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
