package utils

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// validator caches struct metadata and is safe for concurrent use.
var validate = validator.New()

// ValidateStruct runs the `validate` tags of s.
// On tag failures it returns the failing field -> tag map along with the error.
func ValidateStruct(s any) (map[string]string, error) {
	err := validate.Struct(s)
	if err == nil {
		return nil, nil
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return ProcessValidationErrors(validationErrors), err
	}
	return nil, err
}

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}
