package passcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultSessionTTL is the validity window of an issued session.
	DefaultSessionTTL = 24 * time.Hour

	// maxTokenAttempts bounds regeneration on session-token collisions.
	maxTokenAttempts = 5
)

// Engine implements the passcode lifecycle state machine over the store
// contracts. It holds no mutable state of its own; all durability and
// uniqueness guarantees come from the stores, so concurrent invocations
// (one per incoming request) are safe by construction.
type Engine struct {
	stores     Stores
	tx         TxRunner
	logger     *slog.Logger
	now        func() time.Time
	sessionTTL time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source. Tests use this to pin
// activation and expiry arithmetic.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSessionTTL overrides the session validity window.
func WithSessionTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.sessionTTL = ttl }
}

// NewEngine creates a lifecycle engine over the given stores.
func NewEngine(stores Stores, tx TxRunner, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		stores:     stores,
		tx:         tx,
		logger:     logger.With(slog.String("component", "passcode_engine")),
		now:        time.Now,
		sessionTTL: DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ValidateResult is the successful outcome of Validate.
type ValidateResult struct {
	SessionToken string
	ExpiryDate   time.Time
}

// SessionStatus is the successful outcome of CheckSession. A session can be
// valid while its passcode has expired; the two expiries are independent and
// both are surfaced.
type SessionStatus struct {
	ExpiryDate      time.Time
	PasscodeExpired bool
}

// Validate redeems a passcode for a machine and issues a session token.
//
// Checks run in a fixed order and the first failure wins: unknown passcode,
// then machine mismatch, then expiry. A never-used passcode is activated
// before the expiry check, so the check runs against the freshly computed
// expiry date; a zero or negative validity period therefore expires on first
// use. Every outcome, success included, is appended to the validation log.
//
// On ErrPasscodeExpired the returned error is an *ExpiredError carrying the
// expiry date for display.
func (e *Engine) Validate(ctx context.Context, code, machineID, address string) (*ValidateResult, error) {
	now := e.now().UTC()

	rec, err := e.stores.Passcodes.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrPasscodeNotFound) {
			e.audit(ctx, code, machineID, StatusNotFound, address)
			return nil, ErrInvalidPasscode
		}
		return nil, fmt.Errorf("look up passcode: %w", err)
	}

	// Mismatch is checked before expiry: an expired passcode queried from a
	// foreign machine reports mismatch, from its own machine it reports
	// expired. Callers depend on that ordering.
	if rec.IsUsed && rec.MachineID != nil && *rec.MachineID != machineID {
		e.audit(ctx, code, machineID, StatusMachineMismatch, address)
		return nil, ErrMachineMismatch
	}

	expiry := rec.ExpiryDate
	if !rec.IsUsed {
		computed := AddMonthsClamped(now, rec.ValidityMonths)
		if rec.ExpiryDate != nil {
			// Re-activation after an admin unbind: the expiry fixed at the
			// original activation is preserved, never recomputed.
			computed = *rec.ExpiryDate
		}
		won, err := e.stores.Passcodes.Activate(ctx, code, machineID, now, computed)
		if err != nil {
			return nil, fmt.Errorf("activate passcode: %w", err)
		}
		if won {
			expiry = &computed
			e.logger.InfoContext(ctx, "passcode activated",
				slog.String("passcode", code),
				slog.String("machine_id", machineID),
				slog.String("expiry_date", computed.Format(DateLayout)))
		} else {
			// Lost the activation race. Re-read the now-activated record and
			// evaluate this machine against the winner's binding.
			rec, err = e.stores.Passcodes.GetByCode(ctx, code)
			if err != nil {
				return nil, fmt.Errorf("reload passcode after activation race: %w", err)
			}
			if rec.MachineID == nil || *rec.MachineID != machineID {
				e.audit(ctx, code, machineID, StatusMachineMismatch, address)
				return nil, ErrMachineMismatch
			}
			expiry = rec.ExpiryDate
		}
	}

	if expiry == nil {
		return nil, fmt.Errorf("passcode %q is activated but has no expiry date", code)
	}

	if now.After(*expiry) {
		e.audit(ctx, code, machineID, StatusExpired, address)
		return nil, &ExpiredError{ExpiryDate: *expiry}
	}

	if err := e.stores.Passcodes.TouchLastValidated(ctx, code, now); err != nil {
		return nil, fmt.Errorf("stamp last validated: %w", err)
	}

	token, err := e.mintSession(ctx, code, machineID, now)
	if err != nil {
		return nil, err
	}

	e.audit(ctx, code, machineID, StatusSuccess, address)
	return &ValidateResult{SessionToken: token, ExpiryDate: *expiry}, nil
}

// mintSession creates a session row, regenerating the token on the rare
// uniqueness collision rather than failing the caller's request.
func (e *Engine) mintSession(ctx context.Context, code, machineID string, now time.Time) (string, error) {
	for attempt := 1; ; attempt++ {
		token := NewSessionToken()
		err := e.stores.Sessions.Insert(ctx, code, machineID, token, now, now.Add(e.sessionTTL))
		if err == nil {
			return token, nil
		}
		if errors.Is(err, ErrDuplicateToken) && attempt < maxTokenAttempts {
			e.logger.WarnContext(ctx, "session token collision, regenerating",
				slog.Int("attempt", attempt))
			continue
		}
		return "", fmt.Errorf("create session: %w", err)
	}
}

// CheckSession re-validates a previously issued session token for a machine.
// It fails with ErrInvalidSession when no session matches, ErrSessionExpired
// when the session's own window has closed, and otherwise reports whether
// the owning passcode's expiry has separately passed.
func (e *Engine) CheckSession(ctx context.Context, token, machineID string) (*SessionStatus, error) {
	join, err := e.stores.Sessions.FindByTokenAndMachine(ctx, token, machineID)
	if err != nil {
		if errors.Is(err, ErrInvalidSession) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("look up session: %w", err)
	}

	now := e.now().UTC()
	if now.After(join.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	return &SessionStatus{
		ExpiryDate:      join.PasscodeExpiry,
		PasscodeExpired: now.After(join.PasscodeExpiry),
	}, nil
}

// Unbind clears a passcode's machine binding and revokes its sessions as one
// transaction, preserving the computed expiry date. It reports the number of
// sessions revoked. This is the only mutation path that removes a binding.
func (e *Engine) Unbind(ctx context.Context, code, address string) (int64, error) {
	rec, err := e.stores.Passcodes.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrPasscodeNotFound) {
			return 0, ErrPasscodeNotFound
		}
		return 0, fmt.Errorf("look up passcode: %w", err)
	}
	if !rec.IsUsed {
		return 0, ErrNotBound
	}

	var boundMachine string
	if rec.MachineID != nil {
		boundMachine = *rec.MachineID
	}

	var revoked int64
	err = e.tx.InTx(ctx, func(s Stores) error {
		if err := s.Passcodes.Unbind(ctx, code); err != nil {
			return fmt.Errorf("clear binding: %w", err)
		}
		n, err := s.Sessions.DeleteAllForPasscode(ctx, code)
		if err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		revoked = n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("unbind passcode: %w", err)
	}

	// The log entry records the machine the passcode was bound to.
	e.audit(ctx, code, boundMachine, StatusUnboundByAdmin, address)
	e.logger.InfoContext(ctx, "passcode unbound",
		slog.String("passcode", code),
		slog.String("machine_id", boundMachine),
		slog.Int64("sessions_revoked", revoked))
	return revoked, nil
}

// audit appends a validation-log entry. Failures are logged and swallowed:
// the audit trail must never change the outcome of the operation it records.
func (e *Engine) audit(ctx context.Context, code, machineID string, status Status, address string) {
	if err := e.stores.Log.Append(ctx, code, machineID, status, address); err != nil {
		e.logger.WarnContext(ctx, "validation log append failed",
			slog.String("passcode", code),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
	}
}
