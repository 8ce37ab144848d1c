package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"passauth/internal/store"
)

// ValidateResponse is the success body of POST /api/validate.
type ValidateResponse struct {
	Success      bool   `json:"success"`
	SessionToken string `json:"sessionToken"`
	ExpiryDate   string `json:"expiry_date"`
}

// Render implements the render.Renderer interface
func (v *ValidateResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, http.StatusOK)
	return nil
}

// CheckSessionResponse is the success body of POST /api/check-session. A valid
// session is reported even when the owning passcode has expired; IsExpired
// carries that state so clients can prompt for renewal.
type CheckSessionResponse struct {
	Success    bool   `json:"success"`
	Valid      bool   `json:"valid"`
	ExpiryDate string `json:"expiry_date"`
	IsExpired  bool   `json:"is_expired"`
}

// Render implements the render.Renderer interface
func (c *CheckSessionResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, http.StatusOK)
	return nil
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Success bool        `json:"success"`
	Stats   store.Stats `json:"stats"`
}

// Render implements the render.Renderer interface
func (s *StatsResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, http.StatusOK)
	return nil
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Success   bool      `json:"success"`
	Service   string    `json:"service"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Render implements the render.Renderer interface
func (h *HealthResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, http.StatusOK)
	return nil
}
