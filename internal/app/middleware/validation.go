package middleware

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"storefront/internal/app/apperr"
)

type Validator interface {
	Validate(ctx context.Context, message any) error
}

// StructValidator checks `validate` tags on commands and queries. The
// `field` tag names the client-facing field reported on failure.
type StructValidator struct {
	v *validator.Validate
}

func NewStructValidator() *StructValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("field"); name != "" {
			return name
		}
		return f.Name
	})
	return &StructValidator{v: v}
}

func (s *StructValidator) Validate(ctx context.Context, message any) error {
	rv := reflect.ValueOf(message)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	err := s.v.StructCtx(ctx, message)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperr.Validation(fe.Field(), describe(fe), err)
	}
	return apperr.Validation("", err.Error(), err)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", fe.Field(), strings.ToLower(fe.Param()))
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func Validation(v Validator) CommandMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return messageFilter(v.Validate).commands()
}

func QueryValidation(v Validator) QueryMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return messageFilter(v.Validate).queries()
}
