package passcode

import (
	"context"
	"time"
)

// PasscodeStore is the engine's view of the durable passcode table.
// Uniqueness of passcode strings is a store-level constraint.
type PasscodeStore interface {
	// GetByCode returns the record for code, or ErrPasscodeNotFound.
	GetByCode(ctx context.Context, code string) (*Passcode, error)

	// Insert creates a never-used passcode with the given validity period.
	// Returns ErrDuplicatePasscode on a uniqueness collision.
	Insert(ctx context.Context, code string, validityMonths int) error

	// Activate atomically binds a never-used passcode: sets is_used, the
	// machine identifier, the activation timestamp and the computed expiry
	// date, conditional on the passcode still being unused. Returns false
	// (and no error) when a concurrent caller won the activation race.
	Activate(ctx context.Context, code, machineID string, activatedAt, expiry time.Time) (bool, error)

	// TouchLastValidated stamps the last successful validation time.
	TouchLastValidated(ctx context.Context, code string, at time.Time) error

	// Unbind clears the machine binding and activation flag, leaving the
	// expiry date untouched.
	Unbind(ctx context.Context, code string) error
}

// SessionStore is the engine's view of the durable session table.
// Token uniqueness is a store-level constraint.
type SessionStore interface {
	// Insert persists a new session. Returns ErrDuplicateToken on a token
	// collision; the caller regenerates and retries.
	Insert(ctx context.Context, code, machineID, token string, createdAt, expiresAt time.Time) error

	// FindByTokenAndMachine returns the session matching both token and
	// machine identifier, joined with the owning passcode's expiry date,
	// or ErrInvalidSession.
	FindByTokenAndMachine(ctx context.Context, token, machineID string) (*SessionJoin, error)

	// DeleteAllForPasscode revokes every session for code and reports how
	// many rows were removed.
	DeleteAllForPasscode(ctx context.Context, code string) (int64, error)
}

// ValidationLog is the append-only audit sink. Appends are best-effort from
// the engine's perspective: a log failure never aborts the operation that
// produced it.
type ValidationLog interface {
	Append(ctx context.Context, code, machineID string, status Status, address string) error
}

// Stores bundles the three capabilities the engine depends on.
type Stores struct {
	Passcodes PasscodeStore
	Sessions  SessionStore
	Log       ValidationLog
}

// TxRunner executes fn with store handles scoped to a single transaction.
// The engine uses it for unbind, whose binding reset and session revocation
// must commit together.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Stores) error) error
}
