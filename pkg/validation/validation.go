// Package validation checks request shapes at the HTTP boundary. Ledger rules
// (who may do what) are not checked here.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"ecertify/pkg/domain"
	dErrors "ecertify/pkg/domain-errors"
	s "ecertify/pkg/string"
)

var std = build()

func build() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)
	must(v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}))
	must(v.RegisterValidation("actor", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseActorID(fl.Field().String())
		return err == nil
	}))
	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// fieldName reports fields under their JSON name so messages match the body
// the caller sent. Untagged fields fall back to snake case.
func fieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return s.ToSnakeCase(f.Name)
	}
	return name
}

// Validate runs the validate tags on req. The first failing field becomes an
// invalid_input error.
func Validate(req any) error {
	err := std.Struct(req)
	if err == nil {
		return nil
	}
	return dErrors.Wrap(err, dErrors.CodeInvalidInput, describe(err))
}

var messages = map[string]string{
	"required": "%s is required",
	"notblank": "%s must not be blank",
	"min":      "%s must be at least %s",
	"max":      "%s must be at most %s",
	"gt":       "%s must be greater than %s",
	"actor":    "%s must be a 0x-prefixed 20-byte address",
}

func describe(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 || errs[0].Field() == "" {
		return "invalid request body"
	}
	fe := errs[0]
	format, ok := messages[fe.ActualTag()]
	if !ok {
		return fe.Field() + " is invalid"
	}
	if strings.Count(format, "%s") == 2 {
		return fmt.Sprintf(format, fe.Field(), fe.Param())
	}
	return fmt.Sprintf(format, fe.Field())
}
