package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"passauth/internal/passcode"
)

// ErrResponse implements the render.Renderer interface for API errors.
// Every failure carries success:false and a short human-readable reason;
// expiry failures additionally echo the expiry date for display.
type ErrResponse struct {
	HTTPStatusCode int    `json:"-"`
	Success        bool   `json:"success"`
	ErrorText      string `json:"error"`
	ExpiryDate     string `json:"expiry_date,omitempty"`
}

// Render implements the render.Renderer interface
func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

// ErrBadRequest renders a 400 for malformed or incomplete request bodies.
func ErrBadRequest(msg string) *ErrResponse {
	return &ErrResponse{
		HTTPStatusCode: http.StatusBadRequest,
		ErrorText:      msg,
	}
}

// ErrInternal is the generic 500 body. The real cause stays server-side.
var ErrInternal = &ErrResponse{
	HTTPStatusCode: http.StatusInternalServerError,
	ErrorText:      "Server error",
}

// MapValidationError translates an engine error into its API response.
// Unknown errors map to the generic internal error; callers are expected to
// have logged the cause already.
func MapValidationError(err error) *ErrResponse {
	var expired *passcode.ExpiredError
	switch {
	case errors.Is(err, passcode.ErrInvalidPasscode):
		return &ErrResponse{
			HTTPStatusCode: http.StatusUnauthorized,
			ErrorText:      "Invalid passcode",
		}
	case errors.Is(err, passcode.ErrMachineMismatch):
		return &ErrResponse{
			HTTPStatusCode: http.StatusForbidden,
			ErrorText:      "Passcode already bound to different machine",
		}
	case errors.As(err, &expired):
		return &ErrResponse{
			HTTPStatusCode: http.StatusForbidden,
			ErrorText:      "Passcode expired",
			ExpiryDate:     expired.ExpiryDate.Format(passcode.DateLayout),
		}
	case errors.Is(err, passcode.ErrInvalidSession):
		return &ErrResponse{
			HTTPStatusCode: http.StatusUnauthorized,
			ErrorText:      "Invalid session",
		}
	case errors.Is(err, passcode.ErrSessionExpired):
		return &ErrResponse{
			HTTPStatusCode: http.StatusUnauthorized,
			ErrorText:      "Session expired",
		}
	default:
		return ErrInternal
	}
}
