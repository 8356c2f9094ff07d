package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/checkin"
)

// statusOf maps engine and upstream errors to an HTTP status. Upstream
// rejections keep their 4xx status; anything else the upstream did wrong
// is a bad gateway.
func statusOf(err error) int {
	var re *checkin.RemoteError
	switch {
	case errors.Is(err, checkin.ErrFeeRequired),
		errors.Is(err, checkin.ErrInvalidFee),
		errors.Is(err, checkin.ErrConfirmationRequired):
		return http.StatusBadRequest
	case errors.Is(err, checkin.ErrUnknownRecord),
		errors.Is(err, checkin.ErrUnknownGuestList):
		return http.StatusNotFound
	case errors.Is(err, checkin.ErrSessionNotLoaded):
		return http.StatusServiceUnavailable
	case errors.As(err, &re):
		if re.Status >= 400 && re.Status < 500 {
			return re.Status
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// fail writes err as {"error": "..."}. Upstream rejections show their
// own message to staff.
func fail(c echo.Context, err error) error {
	status := statusOf(err)
	msg := err.Error()
	var re *checkin.RemoteError
	if errors.As(err, &re) && re.Message != "" {
		msg = re.Message
	}
	return c.JSON(status, echo.Map{"error": msg})
}
