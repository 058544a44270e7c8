package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]

		if name == "-" {
			return ""
		}

		return name
	})

	return &Validator{validate: v}
}

// Validate checks struct tags of i. The bool is false when at least one field failed.
func (v *Validator) Validate(i any) ([]ValidationError, bool) {
	return v.collect(v.validate.Struct(i), "")
}

// ValidateVar checks a single value against tag, reporting failures under field.
func (v *Validator) ValidateVar(field string, value any, tag string) ([]ValidationError, bool) {
	return v.collect(v.validate.Var(value, tag), field)
}

func (v *Validator) collect(err error, field string) ([]ValidationError, bool) {
	if err == nil {
		return nil, true
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []ValidationError{{
			Field:   field,
			Code:    "INVALID",
			Message: err.Error(),
		}}, false
	}

	result := make([]ValidationError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		name := fe.Field()
		if name == "" {
			name = field
		}

		result = append(result, ValidationError{
			Field:   name,
			Code:    strings.ToUpper(fe.Tag()),
			Message: message(name, fe),
		})
	}

	return result, false
}

func message(name string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "required_if":
		return fmt.Sprintf("%s is required when %s", name, strings.Replace(fe.Param(), " ", " is ", 1))
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", name, fe.Param())
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", name, fe.Param())
	case "printascii":
		return fmt.Sprintf("%s must contain printable ascii characters only", name)
	default:
		return fmt.Sprintf("%s failed on %s", name, fe.Tag())
	}
}
