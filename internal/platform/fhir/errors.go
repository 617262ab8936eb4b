package fhir

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ArgumentError reports a malformed request argument such as a blank or
// version-qualified id. Rendered as 400.
type ArgumentError struct {
	Msg string
}

func (e *ArgumentError) Error() string { return e.Msg }

// NewArgumentError formats an ArgumentError.
func NewArgumentError(format string, args ...interface{}) *ArgumentError {
	return &ArgumentError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidRequestError reports a request whose parameters cannot be
// processed, such as an unparseable integer. Rendered as 400.
type InvalidRequestError struct {
	Msg string
	Err error
}

func (e *InvalidRequestError) Error() string { return e.Msg }

func (e *InvalidRequestError) Unwrap() error { return e.Err }

// NewInvalidRequestError formats an InvalidRequestError.
func NewInvalidRequestError(format string, args ...interface{}) *InvalidRequestError {
	return &InvalidRequestError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports that the addressed resource does not exist.
// Rendered as 404.
type NotFoundError struct {
	ResourceType string
	ID           string
	Msg          string
}

func (e *NotFoundError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("Resource %s/%s is not known", e.ResourceType, e.ID)
}

// NewNotFoundError builds a NotFoundError for resourceType/id.
func NewNotFoundError(resourceType, id string) *NotFoundError {
	return &NotFoundError{ResourceType: resourceType, ID: id}
}

// internalErrorDiagnostics replaces the detail of unclassified failures,
// which may carry driver or SQL text. The detail is logged instead.
const internalErrorDiagnostics = "An internal error occurred while processing the request"

// StatusFor maps an error to its HTTP status and OperationOutcome.
// Anything unclassified is a server failure.
func StatusFor(err error) (int, *OperationOutcome) {
	var argErr *ArgumentError
	var invErr *InvalidRequestError
	var nfErr *NotFoundError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &argErr):
		return http.StatusBadRequest, ProcessingOutcome(argErr.Error())
	case errors.As(err, &invErr):
		return http.StatusBadRequest, InvalidOutcome(invErr.Error())
	case errors.As(err, &nfErr):
		return http.StatusNotFound, NewOperationOutcome(IssueSeverityError, IssueTypeNotFound, nfErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, NewOperationOutcome(IssueSeverityError, IssueTypeTimeout, "request timed out")
	case errors.As(err, &httpErr):
		msg := http.StatusText(httpErr.Code)
		if s, ok := httpErr.Message.(string); ok {
			msg = s
		}
		switch httpErr.Code {
		case http.StatusNotFound:
			return httpErr.Code, NewOperationOutcome(IssueSeverityError, IssueTypeNotFound, msg)
		case http.StatusMethodNotAllowed:
			return httpErr.Code, NewOperationOutcome(IssueSeverityError, IssueTypeNotSupported, msg)
		case http.StatusTooManyRequests:
			return httpErr.Code, NewOperationOutcome(IssueSeverityError, IssueTypeThrottled, msg)
		}
		return httpErr.Code, ErrorOutcome(msg)
	default:
		return http.StatusInternalServerError, ErrorOutcome(internalErrorDiagnostics)
	}
}

// HTTPErrorHandler renders every handler error as an OperationOutcome.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, outcome := StatusFor(err)
		if status >= http.StatusInternalServerError {
			logger.Error().Ctx(c.Request().Context()).Err(err).Int("status", status).Msg("request failed")
		}
		if jerr := c.JSON(status, outcome); jerr != nil {
			logger.Error().Err(jerr).Msg("failed to write error response")
		}
	}
}
