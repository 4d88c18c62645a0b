package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/huangang/uptask/pkg/response"
)

// Services validate with the same `binding` tags gin uses, so callers that
// bypass HTTP get the same checks.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// BindingValidator plugs the service validator into gin's binding so
// ShouldBindJSON reports the same messages as the services.
func BindingValidator() binding.StructValidator {
	return bindingValidator{}
}

type bindingValidator struct{}

func (bindingValidator) ValidateStruct(obj interface{}) error {
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	return validateRequest(obj)
}

func (bindingValidator) Engine() interface{} {
	return validate
}

func validateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return response.NewInvalid(err.Error())
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return response.NewInvalid(fmt.Sprintf("%s is required", fe.Field()))
	case "min":
		if fe.Kind() == reflect.String {
			return response.NewInvalid(fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param()))
		}
	case "max":
		if fe.Kind() == reflect.String {
			return response.NewInvalid(fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		}
	case "email":
		return response.NewInvalid(fmt.Sprintf("%s must be a valid email", fe.Field()))
	case "oneof":
		return response.NewInvalid(fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
	}
	return response.NewInvalid(fmt.Sprintf("%s is invalid", fe.Field()))
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

var dueDateLayouts = []string{time.RFC3339, "2006-01-02"}

// parseDueDate accepts a calendar date or an RFC 3339 timestamp. A nil or
// empty value yields now.
func parseDueDate(value *string) (time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return time.Now().UTC(), nil
	}
	v := strings.TrimSpace(*value)
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, response.NewInvalid("due_date must be YYYY-MM-DD or RFC 3339")
}

// patchDueDate is parseDueDate for partial updates: a nil or blank value
// reports ok=false so the stored date is kept.
func patchDueDate(value *string) (due time.Time, ok bool, err error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return time.Time{}, false, nil
	}
	due, err = parseDueDate(value)
	if err != nil {
		return time.Time{}, false, err
	}
	return due, true, nil
}
