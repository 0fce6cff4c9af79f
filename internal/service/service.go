// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services take repository interfaces, never *sqlite.DB, so tests inject
// in-memory fakes (see fakes_test.go) and the handlers never see SQL.
//
// ERRORS:
// Every rule violation is returned as an *apperror.AppError (validation,
// not found, forbidden, ...). Datastore failures are logged here at Error
// level and wrapped with fmt.Errorf; the handler turns them into a generic
// 500 without leaking the cause.
package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/postvault/internal/apperror"
)

// Field limits shared by the services and their input structs.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MaxTitleLength    = 150
	MaxParagraphLen   = 20000
	MaxTags           = 10
	MaxTagLength      = 30
	MaxCommentLength  = 2000
)

// validate is safe for concurrent use and caches struct metadata, so one
// instance serves the whole package.
var validate = newValidator()

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name ("username", not "Username") so the
	// client can match an error to the input it sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// checkInput runs the struct's validate tags and converts the first failure
// into a field-level ValidationFailed.
func checkInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validating input: %w", err)
	}
	fe := fieldErrs[0]
	return apperror.ValidationFailed(fieldName(fe), fieldMessage(fe))
}

// fieldName strips the "[i]" suffix validator adds for slice elements.
func fieldName(fe validator.FieldError) string {
	name, _, _ := strings.Cut(fe.Field(), "[")
	return name
}

func fieldMessage(fe validator.FieldError) string {
	name := fieldName(fe)
	collection := fe.Kind() == reflect.Slice

	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "email":
		return name + " must be a valid email address"
	case "url":
		return name + " must be a valid URL"
	case "username":
		return name + " may only contain letters, digits, '_' and '-'"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	case "min":
		if collection {
			return fmt.Sprintf("%s must have at least %s items", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
	case "max":
		if collection {
			return fmt.Sprintf("%s must have at most %s items", name, fe.Param())
		}
		if fe.Field() != name {
			return fmt.Sprintf("each of %s must be %s characters or less", name, fe.Param())
		}
		return fmt.Sprintf("%s must be %s characters or less", name, fe.Param())
	}
	return name + " is invalid"
}
