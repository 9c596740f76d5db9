//nolint:gochecknoglobals
package validator

import (
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Validator wraps a shared go-playground validate instance, used for the
// struct-tag validation of configuration types on load.
type Validator struct {
	validate *validator.Validate
}

var (
	validatorInstance *Validator
	validatorOnce     sync.Once
)

// NewValidator - returns the shared Validator instance.
func NewValidator() *Validator {
	validatorOnce.Do(func() {
		validatorInstance = &Validator{validate: validator.New()}
	})

	return validatorInstance
}

// ValidateStruct runs the struct-tag validation and collects one response
// per failed field. An empty result means the struct is valid.
func (v *Validator) ValidateStruct(str interface{}) []*ValidationErrorResponse {
	err := v.validate.Struct(str)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}

	responses := make([]*ValidationErrorResponse, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		responses = append(responses, &ValidationErrorResponse{
			FailedField: fieldErr.StructNamespace(),
			Tag:         fieldErr.Tag(),
			Value:       fieldErr.Param(),
		})
	}

	return responses
}
