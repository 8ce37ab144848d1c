package http

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateRequest is the body of POST /api/validate.
type ValidateRequest struct {
	Passcode  string `json:"passcode" validate:"required"`
	MachineID string `json:"machineId" validate:"required"`
}

// Bind implements the render.Binder interface
func (v *ValidateRequest) Bind(r *http.Request) error {
	if err := validate.Struct(v); err != nil {
		return errors.New("passcode and machineId are required")
	}
	return nil
}

// CheckSessionRequest is the body of POST /api/check-session.
type CheckSessionRequest struct {
	SessionToken string `json:"sessionToken" validate:"required"`
	MachineID    string `json:"machineId" validate:"required"`
}

// Bind implements the render.Binder interface
func (c *CheckSessionRequest) Bind(r *http.Request) error {
	if err := validate.Struct(c); err != nil {
		return errors.New("sessionToken and machineId are required")
	}
	return nil
}
