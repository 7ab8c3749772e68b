package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"skillswap/internal/models"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

func validate() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return ValidateUsername(fl.Field().String()) == nil
		})
		_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return ValidatePassword(fl.Field().String()) == nil
		})
		instance = v
	})
	return instance
}

// Struct validates a request body using its `validate` tags. Failures come
// back as a validation AppError naming the first offending field.
func Struct(v interface{}) error {
	err := validate().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return models.NewValidationError(err.Error())
	}

	fields := ParseError(err)
	msg := describe(fieldErrs[0])
	appErr := models.NewValidationError(msg)
	if len(fields) > 1 {
		names := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			names = append(names, fe.Field())
		}
		appErr.Err = fmt.Errorf("invalid fields: %s", strings.Join(names, ", "))
	}
	return appErr
}

// ParseError flattens validator failures into field -> message.
func ParseError(err error) map[string]string {
	out := make(map[string]string)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			out[fe.Field()] = describe(fe)
		}
	} else if err != nil {
		out["error"] = err.Error()
	}
	return out
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", field, fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "username":
		return ValidateUsername(fmt.Sprint(fe.Value())).Error()
	case "password":
		return ValidatePassword(fmt.Sprint(fe.Value())).Error()
	default:
		return fmt.Sprintf("%s failed on the '%s' rule", field, fe.Tag())
	}
}
