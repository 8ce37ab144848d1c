// Package passcode implements the passcode lifecycle engine: activation on
// first use, machine binding, expiry computation, session issuance and the
// administrative unbind operation. Durability lives behind the store
// contracts in stores.go; this package owns the state transitions.
package passcode

import "time"

// Status is the outcome of a validation attempt as recorded in the
// validation log.
type Status string

const (
	StatusNotFound        Status = "not_found"
	StatusMachineMismatch Status = "machine_mismatch"
	StatusExpired         Status = "expired"
	StatusSuccess         Status = "success"
	StatusUnboundByAdmin  Status = "unbound_by_admin"
)

// Passcode is a single license passcode and its binding state.
//
// The three activation facts (IsUsed, MachineID, ExpiryDate) transition
// together: a passcode is activated exactly when it has a machine binding
// and a computed expiry date. ExpiryDate is fixed at activation time and is
// never recomputed; unbind clears the binding but leaves it untouched.
type Passcode struct {
	Code           string
	MachineID      *string
	ValidityMonths int
	ExpiryDate     *time.Time // date-only, midnight UTC
	IsUsed         bool
	CreatedAt      time.Time
	ActivatedAt    *time.Time
	LastValidated  *time.Time
}

// Session is a short-lived credential issued per successful validation.
// Its expiry is independent of the owning passcode's expiry.
type Session struct {
	ID        int64
	Passcode  string
	MachineID string
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionJoin is a session looked up together with its owning passcode's
// expiry date, as returned by SessionStore.FindByTokenAndMachine.
type SessionJoin struct {
	Session
	PasscodeExpiry time.Time
}

// LogEntry is one row of the append-only validation audit trail.
type LogEntry struct {
	ID        int64
	Passcode  string
	MachineID string
	Status    Status
	Address   string
	Timestamp time.Time
}
