package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report query parameter names rather than Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"query", "json"} {
			if name := strings.Split(f.Tag.Get(tag), ",")[0]; name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// ruleText maps a validator tag to its message and the name its parameter
// is reported under.
var ruleText = map[string]struct{ format, param string }{
	"required": {"%s is required", ""},
	"min":      {"%s must be at least %s", "min"},
	"gte":      {"%s must be greater than or equal to %s", "min"},
	"gt":       {"%s must be greater than %s", "value"},
	"max":      {"%s must be at most %s", "max"},
	"lte":      {"%s must be less than or equal to %s", "max"},
	"lt":       {"%s must be less than %s", "value"},
	"oneof":    {"%s must be one of: %s", "options"},
}

// ReadAndValidateRequest binds query parameters into req, fills defaults
// for the ones left unset and validates the result.
func ReadAndValidateRequest(c echo.Context, req interface{}) []ValidationError {
	if err := c.Bind(req); err != nil {
		return bindFailure(err)
	}
	if err := defaults.Set(req); err != nil {
		return bindFailure(err)
	}
	err := validate.StructCtx(c.Request().Context(), req)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := make([]ValidationError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			out = append(out, fieldFailure(fe))
		}
		return out
	}
	if err != nil {
		return bindFailure(err)
	}
	return nil
}

func fieldFailure(fe validator.FieldError) ValidationError {
	ve := ValidationError{Code: "ERR_" + strings.ToUpper(fe.Tag()), Field: fe.Field()}
	rule, ok := ruleText[fe.Tag()]
	if !ok {
		ve.Message = fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
		return ve
	}

	param := fe.Param()
	if fe.Tag() == "oneof" {
		ve.Params = map[string]interface{}{rule.param: strings.Fields(param)}
		param = strings.Join(strings.Fields(param), ", ")
	} else if rule.param != "" {
		ve.Params = map[string]interface{}{rule.param: param}
	}
	if rule.param == "" {
		ve.Message = fmt.Sprintf(rule.format, fe.Field())
	} else {
		ve.Message = fmt.Sprintf(rule.format, fe.Field(), param)
	}
	return ve
}

// bindFailure covers parameters that could not be decoded at all, such as
// window=abc.
func bindFailure(err error) []ValidationError {
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	return []ValidationError{{Code: "ERR_BIND", Message: msg}}
}
