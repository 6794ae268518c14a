package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

type GenericEchoValidator struct {
	Validator *validator.Validate
}

func (gv *GenericEchoValidator) Validate(i interface{}) error {
	if gv.Validator == nil {
		gv.Validator = validator.New()
	}
	err := gv.Validator.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		problems := make([]string, 0, len(fieldErrors))
		for _, fieldError := range fieldErrors {
			problems = append(problems, describe(fieldError))
		}
		return echo.NewHTTPError(http.StatusBadRequest, "received invalid request body: "+strings.Join(problems, "; "))
	}
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("received invalid request body: %v", err))
}

func describe(fieldError validator.FieldError) string {
	field := strings.ToLower(fieldError.Field())
	switch fieldError.Tag() {
	case "required":
		return field + " is required"
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, fieldError.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fieldError.Tag())
	}
}
