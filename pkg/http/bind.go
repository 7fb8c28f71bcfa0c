package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// Bind fills req from the request, applies `default` tags and validates it.
// Every failure is a *RequestError.
func Bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return &RequestError{Fields: []FieldError{{Code: "ERR_BIND", Message: fmt.Sprint(he.Message)}}}
		}
		return &RequestError{Fields: []FieldError{{Code: "ERR_BIND", Message: err.Error()}}}
	}
	if err := defaults.Set(req); err != nil {
		return &RequestError{Fields: []FieldError{{Code: "ERR_DEFAULTS", Message: err.Error()}}}
	}

	err := validate.StructCtx(c.Request().Context(), req)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if err != nil {
			return &RequestError{Fields: []FieldError{{Code: "ERR_UNKNOWN", Message: err.Error()}}}
		}
		return nil
	}

	out := &RequestError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, describe(fe))
	}
	return out
}

// ruleText maps a validator tag to its message; %s is the field and %p the
// tag parameter.
var ruleText = map[string]string{
	"required": "%s is required",
	"gte":      "%s must be at least %p",
	"lte":      "%s must be at most %p",
	"oneof":    "%s must be one of %p",
	"datetime": "%s must be a date formatted as %p",
}

func describe(fe validator.FieldError) FieldError {
	text, ok := ruleText[fe.Tag()]
	if !ok {
		text = "%s failed the %t rule"
	}
	r := strings.NewReplacer("%s", fe.Field(), "%p", fe.Param(), "%t", fe.Tag())

	out := FieldError{
		Code:    "ERR_" + strings.ToUpper(fe.Tag()),
		Field:   fe.Field(),
		Message: r.Replace(text),
	}
	if fe.Param() != "" {
		out.Params = map[string]interface{}{"param": fe.Param()}
	}
	return out
}
