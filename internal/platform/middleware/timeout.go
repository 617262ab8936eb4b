package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/bluebutton/server/internal/platform/fhir"
)

// RequestTimeout sets a deadline on each request context. The handler runs on
// the request goroutine, so nothing writes to the response once this returns;
// store lookups abort when the deadline cancels their context. A handler
// error caused by the deadline is answered with a 504 OperationOutcome.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{
		Timeout: timeout,
		ErrorHandler: func(err error, c echo.Context) error {
			if errors.Is(err, context.DeadlineExceeded) {
				return gatewayTimeoutError(c, err)
			}
			return err
		},
	})
}

func gatewayTimeoutError(c echo.Context, err error) error {
	if c.Response().Committed {
		return nil
	}
	status, outcome := fhir.StatusFor(err)
	if status != http.StatusGatewayTimeout {
		return err
	}
	return c.JSON(status, outcome)
}
