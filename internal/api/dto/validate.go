package dto

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/user-service/pkg/util"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct tag validation and converts failures into a
// VALIDATION_FAILED domain error with per-field details.
func Validate(payload any) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[strings.ToLower(fe.Field())] = ruleMessage(fe)
	}
	return apperrors.NewValidationError("validation failed", details)
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
