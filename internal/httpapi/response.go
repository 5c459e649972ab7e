// Package httpapi is the thin HTTP adapter over the engine (spec §6: "The
// engine exposes the operations in §6 as plain function calls; the wire
// adapter is a separate concern"). It translates JSON requests into
// domain-service calls and domain errors into RFC 7807 Problem Details,
// the teacher's internal/handler response convention.
package httpapi

import (
	"net/http"

	"github.com/dafibh/fortuna/fortuna-backend/internal/ledgererr"
	"github.com/labstack/echo/v4"
)

// ProblemDetails is an RFC 7807 Problem Details response.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Field    string `json:"field,omitempty"`
}

const (
	errorTypeValidation = "https://fortuna.app/errors/validation"
	errorTypeConflict   = "https://fortuna.app/errors/conflict"
	errorTypeDrift      = "https://fortuna.app/errors/drift"
	errorTypeGuardrail  = "https://fortuna.app/errors/guardrail"
	errorTypeInternal   = "https://fortuna.app/errors/internal"
)

// writeError maps a domain error to its Problem Details response, using
// ledgererr.Kind the way spec §7 defines the taxonomy (not a generic
// exception hierarchy).
func writeError(c echo.Context, err error) error {
	kind := ledgererr.KindOf(err)

	status, errType, title := http.StatusInternalServerError, errorTypeInternal, "Internal Server Error"
	switch kind {
	case ledgererr.KindValidation:
		status, errType, title = http.StatusBadRequest, errorTypeValidation, "Validation Error"
	case ledgererr.KindConflict:
		status, errType, title = http.StatusConflict, errorTypeConflict, "Conflict"
	case ledgererr.KindDrift:
		status, errType, title = http.StatusConflict, errorTypeDrift, "Drift Detected"
	case ledgererr.KindGuardrail:
		status, errType, title = http.StatusUnprocessableEntity, errorTypeGuardrail, "Guardrail Exceeded"
	}

	pd := ProblemDetails{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   err.Error(),
		Instance: c.Request().URL.Path,
	}
	if le := fieldOf(err); le != nil {
		pd.Field = le.Field
	}
	return c.JSON(status, pd)
}

// fieldOf walks err's Unwrap chain looking for the first *ledgererr.Error,
// so a field hint survives even if the error was wrapped again upstream.
func fieldOf(err error) *ledgererr.Error {
	for err != nil {
		if le, ok := err.(*ledgererr.Error); ok {
			return le
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}

func writeOK(c echo.Context, v interface{}) error {
	return c.JSON(http.StatusOK, v)
}

func writeCreated(c echo.Context, v interface{}) error {
	return c.JSON(http.StatusCreated, v)
}
