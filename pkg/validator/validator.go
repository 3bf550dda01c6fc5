package validator

import (
	"github.com/go-playground/validator/v10"
)

// CustomValidator implements echo.Validator using go-playground/validator
type CustomValidator struct {
	v *validator.Validate
}

// New creates a new CustomValidator instance
func New() *CustomValidator {
	v := validator.New()

	// transcription_service limits preferred_service to the values the
	// fallback chain understands.
	_ = v.RegisterValidation("transcription_service", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "", "auto", "pipeline", "batch":
			return true
		}
		return false
	})

	return &CustomValidator{v: v}
}

// Validate performs struct validation
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}
