package dto

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/baechuer/contacts-api/internal/domain"
)

const (
	minPasswordBytes = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Report json names so error meta matches the request body.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("password", validatePasswordBytes)
		_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return domain.IsValidRole(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// Length is checked in bytes, not runes, to match what bcrypt sees.
func validatePasswordBytes(fl validator.FieldLevel) bool {
	n := len(fl.Field().String())
	return n >= minPasswordBytes && n <= maxPasswordBytes
}

// validateStruct runs the tag rules and maps the first failure to a domain
// error.
func validateStruct(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.ErrInternal(err)
	}
	return fieldError(verrs[0])
}

func fieldError(fe validator.FieldError) error {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return domain.ErrMissingField(field)
	case "email":
		return domain.ErrInvalidField(field, "invalid email")
	case "max":
		return domain.ErrInvalidField(field, "too long")
	case "password":
		if len(fe.Value().(string)) < minPasswordBytes {
			return domain.ErrWeakPassword("min length 8")
		}
		return domain.ErrWeakPassword("max length 72 bytes")
	case "role":
		return domain.ErrInvalidRole(fe.Value().(string))
	default:
		return domain.ErrInvalidField(field, "invalid")
	}
}
