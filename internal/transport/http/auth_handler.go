package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"passauth/internal/infrastructure"
	"passauth/internal/passcode"
	"passauth/internal/store"
)

// ServiceName identifies this service in health responses.
const ServiceName = "passauth"

// AuthService is the engine surface the HTTP handlers need.
type AuthService interface {
	Validate(ctx context.Context, code, machineID, address string) (*passcode.ValidateResult, error)
	CheckSession(ctx context.Context, token, machineID string) (*passcode.SessionStatus, error)
}

// StatsProvider reports the aggregate counts served on /api/stats.
type StatsProvider interface {
	Stats(ctx context.Context) (store.Stats, error)
}

// AuthHandler handles passcode validation HTTP requests.
type AuthHandler struct {
	service AuthService
	stats   StatsProvider
	metrics *infrastructure.Metrics
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(service AuthService, stats StatsProvider, metrics *infrastructure.Metrics, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		stats:   stats,
		metrics: metrics,
		logger:  logger.With(slog.String("handler", "auth")),
	}
}

// Routes returns a chi router for the auth endpoints.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/validate", h.Validate)
	r.Post("/check-session", h.CheckSession)
	r.Get("/stats", h.Stats)
	r.Get("/health", h.Health)
	return r
}

// Validate handles POST /api/validate.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &ValidateRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, ErrBadRequest(err.Error()))
		return
	}

	result, err := h.service.Validate(ctx, req.Passcode, req.MachineID, r.RemoteAddr)
	if err != nil {
		h.recordOutcome(err)
		resp := MapValidationError(err)
		if resp == ErrInternal {
			h.logger.ErrorContext(ctx, "validation failed",
				slog.String("machine_id", req.MachineID),
				slog.String("error", err.Error()))
		}
		render.Render(w, r, resp)
		return
	}

	h.metrics.RecordValidation(string(passcode.StatusSuccess))
	h.metrics.SessionsIssued.Inc()
	render.Render(w, r, &ValidateResponse{
		Success:      true,
		SessionToken: result.SessionToken,
		ExpiryDate:   result.ExpiryDate.Format(passcode.DateLayout),
	})
}

// CheckSession handles POST /api/check-session.
func (h *AuthHandler) CheckSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &CheckSessionRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, ErrBadRequest(err.Error()))
		return
	}

	status, err := h.service.CheckSession(ctx, req.SessionToken, req.MachineID)
	if err != nil {
		resp := MapValidationError(err)
		if resp == ErrInternal {
			h.logger.ErrorContext(ctx, "session check failed",
				slog.String("machine_id", req.MachineID),
				slog.String("error", err.Error()))
		}
		render.Render(w, r, resp)
		return
	}

	render.Render(w, r, &CheckSessionResponse{
		Success:    true,
		Valid:      true,
		ExpiryDate: status.ExpiryDate.Format(passcode.DateLayout),
		IsExpired:  status.PasscodeExpired,
	})
}

// Stats handles GET /api/stats.
func (h *AuthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.stats.Stats(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "stats query failed", slog.String("error", err.Error()))
		render.Render(w, r, ErrInternal)
		return
	}

	render.Render(w, r, &StatsResponse{Success: true, Stats: stats})
}

// Health handles GET /api/health.
func (h *AuthHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.Render(w, r, &HealthResponse{
		Success:   true,
		Service:   ServiceName,
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

// recordOutcome maps a validation error onto the outcome counter using the
// same status labels the validation log records.
func (h *AuthHandler) recordOutcome(err error) {
	var expired *passcode.ExpiredError
	switch {
	case errors.Is(err, passcode.ErrInvalidPasscode):
		h.metrics.RecordValidation(string(passcode.StatusNotFound))
	case errors.Is(err, passcode.ErrMachineMismatch):
		h.metrics.RecordValidation(string(passcode.StatusMachineMismatch))
	case errors.As(err, &expired):
		h.metrics.RecordValidation(string(passcode.StatusExpired))
	default:
		h.metrics.RecordValidation("error")
	}
}
