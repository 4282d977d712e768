// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"sort"
	"strings"

	"content-workers/internal/common/errors"
	"content-workers/pkg/registry"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validator holds compiled input schemas keyed by activity id.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewValidator compiles the input schema of every activity in reg.
func NewValidator(reg *registry.ActivityRegistry) (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(reg.Activities))}
	for _, a := range reg.Activities {
		if len(a.InputSchema) == 0 {
			continue
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(a.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("compile input schema for %s: %w", a.ID, err)
		}
		v.schemas[a.ID] = schema
	}
	return v, nil
}

// ValidateJSON checks a raw JSON document. Activities without a schema accept anything.
func (v *Validator) ValidateJSON(activityID string, doc []byte) error {
	if len(doc) == 0 {
		doc = []byte("{}")
	}
	return v.validate(activityID, gojsonschema.NewBytesLoader(doc))
}

// ValidateMap checks already-decoded job variables.
func (v *Validator) ValidateMap(activityID string, doc map[string]interface{}) error {
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return v.validate(activityID, gojsonschema.NewGoLoader(doc))
}

func (v *Validator) validate(activityID string, loader gojsonschema.JSONLoader) error {
	schema, ok := v.schemas[activityID]
	if !ok {
		return nil
	}

	result, err := schema.Validate(loader)
	if err != nil {
		return errors.NewValidationError(fmt.Sprintf("malformed JSON: %v", err))
	}
	if result.Valid() {
		return nil
	}

	fieldErrs := Collect(result)
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}

	return errors.NewValidationError(strings.Join(msgs, "; ")).
		WithMetadata("fields", fieldErrs)
}

// Collect flattens gojsonschema result errors, sorted by field for stable output.
func Collect(result *gojsonschema.Result) []ValidationError {
	out := make([]ValidationError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		out = append(out, ValidationError{
			Field:   re.Field(),
			Message: re.Description(),
			Code:    re.Type(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
