package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"tutorme.app/marketplace/pkg/apperror"
)

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}

// Struct checks v against the same tags gin binding uses, so services can
// validate input that did not arrive through a request.
func Struct(v any) error {
	if err := structValidator.Struct(v); err != nil {
		return ToValidationError(err)
	}
	return nil
}

// FormatValidationError converts binding errors into a single readable line.
func FormatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, fieldError := range validationErrors {
			messages = append(messages, getFieldErrorMessage(fieldError))
		}
		return strings.Join(messages, "; ")
	}
	return err.Error()
}

// ToValidationError converts binding errors into per-field messages so forms
// can show them inline. Non-validator errors (malformed JSON) are wrapped as
// ErrBadRequest.
func ToValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", apperror.ErrBadRequest, err)
	}

	v := apperror.NewValidationError()
	for _, fe := range validationErrors {
		v.Add(jsonName(fe.Field()), getFieldErrorMessage(fe))
	}
	return v.Err()
}

func getFieldErrorMessage(fe validator.FieldError) string {
	field := getFieldName(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		if fe.Type().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		if fe.Kind().String() == "slice" {
			return fmt.Sprintf("select at least %s %s", fe.Param(), strings.ToLower(field))
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Type().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s does not match", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func getFieldName(field string) string {
	fieldNames := map[string]string{
		"Email":           "Email",
		"Password":        "Password",
		"ConfirmPassword": "Password confirmation",
		"Role":            "Role",
		"FullName":        "Full name",
		"Phone":           "Phone",
		"Subjects":        "Subjects",
		"Bio":             "Bio",
		"HourlyRate":      "Hourly rate",
		"TutorID":         "Tutor",
		"Date":            "Date",
		"Duration":        "Duration",
	}

	if name, ok := fieldNames[field]; ok {
		return name
	}
	return field
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
