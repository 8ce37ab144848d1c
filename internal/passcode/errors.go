package passcode

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by the lifecycle engine and the store contracts.
// The HTTP and CLI surfaces map these 1:1 to their own responses; none of
// them carry internal detail.
var (
	// ErrInvalidPasscode is returned by Validate for an unknown passcode.
	ErrInvalidPasscode = errors.New("invalid passcode")

	// ErrMachineMismatch is returned when a passcode is already bound to a
	// different machine.
	ErrMachineMismatch = errors.New("passcode already bound to different machine")

	// ErrPasscodeExpired is returned when a passcode's expiry date has
	// passed. Validate wraps it in an ExpiredError so callers can still
	// display the expiry date.
	ErrPasscodeExpired = errors.New("passcode expired")

	// ErrInvalidSession is returned when no session matches the supplied
	// token and machine identifier.
	ErrInvalidSession = errors.New("invalid session")

	// ErrSessionExpired is returned when a session's own expiry has passed,
	// regardless of the owning passcode's state.
	ErrSessionExpired = errors.New("session expired")

	// ErrPasscodeNotFound is returned by Unbind and the admin read paths
	// for an unknown passcode.
	ErrPasscodeNotFound = errors.New("passcode not found")

	// ErrNotBound is returned by Unbind for a passcode that has never been
	// activated.
	ErrNotBound = errors.New("passcode is not bound to any machine")

	// ErrDuplicatePasscode is returned by PasscodeStore.Insert on a
	// uniqueness collision. Batch creation retries with a fresh code.
	ErrDuplicatePasscode = errors.New("passcode already exists")

	// ErrDuplicateToken is returned by SessionStore.Insert on a token
	// collision. The engine regenerates and retries; callers never see it.
	ErrDuplicateToken = errors.New("session token already exists")
)

// ExpiredError wraps ErrPasscodeExpired with the fixed expiry date so the
// caller can echo it in the failure response.
type ExpiredError struct {
	ExpiryDate time.Time
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("passcode expired on %s", e.ExpiryDate.Format(DateLayout))
}

func (e *ExpiredError) Unwrap() error { return ErrPasscodeExpired }
