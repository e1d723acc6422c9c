package main

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerValidatorsOnce sync.Once

// registerValidators adds the request tags used by the handlers to gin's validator
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "" {
				name, _, _ = strings.Cut(field.Tag.Get("form"), ",")
			}
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterValidation("webhook_event", func(fl validator.FieldLevel) bool {
			_, err := parseEvents([]string{fl.Field().String()})
			return err == nil
		})
	})
}

// validationMessage turns binding errors into a message naming each bad field
func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Sprintf("invalid request body: %v", err)
	}

	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		var problem string
		switch fe.Tag() {
		case "required":
			problem = "is required"
		case "url":
			problem = "must be a valid URL"
		case "min":
			problem = "must have at least " + fe.Param() + " item(s)"
		case "webhook_event":
			problem = fmt.Sprintf("%q is not a known event", fe.Value())
		default:
			problem = "is invalid"
		}
		msgs = append(msgs, fieldPath(fe.Namespace())+" "+problem)
	}
	return strings.Join(msgs, "; ")
}

// fieldPath drops the top-level type name, and the envelope, from a validator namespace
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, ".request."); ok {
		return rest
	}
	if i := strings.LastIndex(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
