package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/iho/tontiflex/internal/domain"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
	errValidate  error
)

func initValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// decimal.Decimal is a struct, so these read the field directly
	if err := v.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && d.IsPositive()
	}); err != nil {
		return nil, fmt.Errorf("register positive_decimal: %w", err)
	}
	if err := v.RegisterValidation("nonnegative_decimal", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && !d.IsNegative()
	}); err != nil {
		return nil, fmt.Errorf("register nonnegative_decimal: %w", err)
	}

	return v, nil
}

// Validate checks req against its validate tags. Failures are InvalidInput
// domain errors naming the first offending field.
func Validate(req any) error {
	validateOnce.Do(func() {
		validate, errValidate = initValidator()
	})
	if errValidate != nil {
		return errValidate
	}

	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fieldError(fieldErrs[0])
	}
	return domain.InvalidInput("%v", err)
}

func fieldError(fe validator.FieldError) error {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return domain.InvalidInput("%s is required", field)
	case "positive_decimal":
		return domain.InvalidInput("%s must be a positive amount", field)
	case "nonnegative_decimal":
		return domain.InvalidInput("%s must not be negative", field)
	case "oneof":
		return domain.InvalidInput("%s must be one of [%s]", field, fe.Param())
	case "min", "gte":
		return domain.InvalidInput("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return domain.InvalidInput("%s must be at most %s", field, fe.Param())
	default:
		return domain.InvalidInput("%s failed %s validation", field, fe.Tag())
	}
}
