package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"product_catalog/internal/apperr"

	"github.com/go-playground/validator/v10"
)

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// newValidator reports fields by their JSON names. tag selects the struct
// tag holding the rules ("validate" for domain types, "binding" for the
// request types gin also binds).
func newValidator(tag string) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName(tag)
	v.RegisterTagNameFunc(jsonFieldName)
	return v
}

// UseJSONFieldNames makes v, typically gin's binding engine, report fields
// by their JSON names so binding failures line up with service failures.
func UseJSONFieldNames(v *validator.Validate) {
	v.RegisterTagNameFunc(jsonFieldName)
}

// BindingError converts a request decoding or binding failure into a
// KindValidation error.
func BindingError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("invalid request body", nil)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = violationMessage(fe)
	}
	return apperr.Validation("validation failed", fields)
}

var (
	productValidator = newValidator("validate")
	requestValidator = newValidator("binding")
)

// collectViolations validates s and records each violation under
// prefix+field. It returns an error only when validation could not run.
func collectViolations(v *validator.Validate, s any, prefix string, fields map[string]string) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate: %w", err)
	}
	for _, fe := range verrs {
		fields[prefix+fe.Field()] = violationMessage(fe)
	}
	return nil
}

func violationMessage(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required":
		return "is required"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return "is not valid"
	}
}

// validate returns a KindValidation error listing every violation of s
func validate(v *validator.Validate, s any) error {
	fields := map[string]string{}
	if err := collectViolations(v, s, "", fields); err != nil {
		return apperr.Internal(err)
	}
	if len(fields) > 0 {
		return apperr.Validation("validation failed", fields)
	}
	return nil
}
