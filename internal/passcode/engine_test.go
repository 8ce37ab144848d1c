package passcode_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passauth/internal/passcode"
	"passauth/internal/store"
)

// testClock is a settable time source for pinning expiry arithmetic.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, clock *testClock, opts ...passcode.Option) (*passcode.Engine, *store.Store) {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	opts = append([]passcode.Option{passcode.WithClock(clock.Now)}, opts...)
	engine := passcode.NewEngine(st.Stores(), st, testLogger(), opts...)
	return engine, st
}

func seedPasscode(t *testing.T, st *store.Store, code string, months int) {
	t.Helper()
	require.NoError(t, st.Stores().Passcodes.Insert(context.Background(), code, months))
}

func TestValidateActivatesAndBindsOnFirstUse(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(time.Date(2024, 1, 31, 14, 30, 0, 0, time.UTC))
	engine, st := newTestEngine(t, clock)
	seedPasscode(t, st, "ABCD1234", 1)

	result, err := engine.Validate(ctx, "ABCD1234", "MACHINE-A", "10.0.0.1")
	require.NoError(t, err)

	// Jan 31 + 1 month clamps to the leap-year Feb 29.
	assert.Equal(t, "2024-02-29", result.ExpiryDate.Format(passcode.DateLayout))
	assert.Len(t, result.SessionToken, 64)

	rec, err := st.Stores().Passcodes.GetByCode(ctx, "ABCD1234")
	require.NoError(t, err)
	assert.True(t, rec.IsUsed)
	require.NotNil(t, rec.MachineID)
	assert.Equal(t, "MACHINE-A", *rec.MachineID)
	require.NotNil(t, rec.ActivatedAt)
	require.NotNil(t, rec.LastValidated)

	logs, err := st.RecentLogs(ctx, "ABCD1234", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, passcode.StatusSuccess, logs[0].Status)
	assert.Equal(t, "10.0.0.1", logs[0].Address)
}

func TestValidateIsIdempotentForTheBoundMachine(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	engine, st := newTestEngine(t, clock)
	seedPasscode(t, st, "ABCD1234", 1)

	first, err := engine.Validate(ctx, "ABCD1234", "MACHINE-A", "10.0.0.1")
	require.NoError(t, err)
	second, err := engine.Validate(ctx, "ABCD1234", "MACHINE-A", "10.0.0.1")
	require.NoError(t, err)

	assert.NotEqual(t, first.SessionToken, second.SessionToken)
	assert.Equal(t, first.ExpiryDate, second.ExpiryDate)

	sessions, err := st.SessionsForPasscode(ctx, "ABCD1234")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestValidateUnknownPasscode(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	engine, st := newTestEngine(t, clock)

	_, err := engine.Validate(ctx, "NOPE0000", "MACHINE-A", "10.0.0.1")
	assert.ErrorIs(t, err, passcode.ErrInvalidPasscode)

	logs, err := st.RecentLogs(ctx, "NOPE0000", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, passcode.StatusNotFound, logs[0].Status)
}

func TestValidateMachineMismatch(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	engine, st := newTestEngine(t, clock)
	seedPasscode(t, st, "ABCD1234", 1)

	_, err := engine.Validate(ctx, "ABCD1234", "MACHINE-A", "10.0.0.1")
	require.NoError(t, err)

	_, err = engine.Validate(ctx, "ABCD1234", "MACHINE-B", "10.0.0.2")
	assert.ErrorIs(t, err, passcode.ErrMachineMismatch)

	logs, err := st.RecentLogs(ctx, "ABCD1234", 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, passcode.StatusMachineMismatch, logs[0].Status)
}

func TestValidateExpiredReportsDateToBoundMachine(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	engine, st := newTestEngine(t, clock)
	seedPasscode(t, st, "ABCD1234", 1)

	_, err := engine.Validate(ctx, "ABCD1234", "MACHINE-A", "10.0.0.1")
	require.NoError(t, err)

	clock.Set(time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC))

	_, err = engine.Validate(ctx, "ABCD1234", "MACHINE-A", "10.0.0.1")
	require.ErrorIs(t, err, passcode.ErrPasscodeExpired)

	var expired *passcode.ExpiredError
	require.ErrorAs(t, err, &expired)
	assert.Equal(t, "2024-07-10", expired.ExpiryDate.Format(passcode.DateLayout))
}

func TestValidateMismatchWinsOverExpiryForForeignMachine(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	engine, st := newTestEngine(t, clock)
	seedPasscode(t, st, "ABCD1234", 1)

	_, err := engine.Validate(ctx, "ABCD1234", "MACHINE-A", "10.0.0.1")
	require.NoError(t, err)

	clock.Set(time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC))

	// The passcode is both expired and foreign-bound; mismatch is checked
	// first, so a foreign machine never learns about the expiry.
	_, err = engine.Validate(ctx, "ABCD1234", "MACHINE-B", "10.0.0.2")
	assert.ErrorIs(t, err, passcode.ErrMachineMismatch)
}

func TestValidateZeroValidityExpiresOnFirstUse(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	engine, st := newTestEngine(t, clock)
	seedPasscode(t, st, "ABCD1234", 0)

	_, err := engine.Validate(ctx, "ABCD1234", "MACHINE-A", "10.0.0.1")
	require.ErrorIs(t, err, passcode.ErrPasscodeExpired)

	// Activation still happened: the binding committed before the expiry
	// check ran against the freshly computed date.
	rec, err := st.Stores().Passcodes.GetByCode(ctx, "ABCD1234")
	require.NoError(t, err)
	assert.True(t, rec.IsUsed)
	require.NotNil(t, rec.ExpiryDate)
	assert.Equal(t, "2024-06-10", rec.ExpiryDate.Format(passcode.DateLayout))
}

func TestConcurrentActivationBindsExactlyOneMachine(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	engine, st := newTestEngine(t, clock)
	seedPasscode(t, st, "ABCD1234", 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	machines := []string{"MACHINE-A", "MACHINE-B"}
	for i := range machines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Validate(ctx, "ABCD1234", machines[i], "10.0.0.1")
		}(i)
	}
	wg.Wait()

	var successes, mismatches int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, passcode.ErrMachineMismatch):
			mismatches++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes, "exactly one machine wins the activation race")
	assert.Equal(t, 1, mismatches)

	rec, err := st.Stores().Passcodes.GetByCode(ctx, "ABCD1234")
	require.NoError(t, err)
	require.NotNil(t, rec.MachineID)
	assert.Contains(t, machines, *rec.MachineID)
}

func TestUnbindPreservesExpiryAndRevokesSessions(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(time.Date(2024, 1, 31, 14, 0, 0, 0, time.UTC))
	engine, st := newTestEngine(t, clock)
	seedPasscode(t, st, "ABCD1234", 1)

	first, err := engine.Validate(ctx, "ABCD1234", "MACHINE-A", "10.0.0.1")
	require.NoError(t, err)

	_, err = engine.Validate(ctx, "ABCD1234", "MACHINE-B", "10.0.0.2")
	require.ErrorIs(t, err, passcode.ErrMachineMismatch)

	revoked, err := engine.Unbind(ctx, "ABCD1234", "CLI")
	require.NoError(t, err)
	assert.Equal(t, int64(1), revoked)

	// The old machine's session is gone.
	_, err = engine.CheckSession(ctx, first.SessionToken, "MACHINE-A")
	assert.ErrorIs(t, err, passcode.ErrInvalidSession)

	// Re-activation by the other machine keeps the original expiry; it is
	// not recomputed from the re-activation time.
	clock.Advance(48 * time.Hour)
	second, err := engine.Validate(ctx, "ABCD1234", "MACHINE-B", "10.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, first.ExpiryDate, second.ExpiryDate)

	logs, err := st.RecentLogs(ctx, "ABCD1234", 10)
	require.NoError(t, err)
	var unbound *passcode.LogEntry
	for i := range logs {
		if logs[i].Status == passcode.StatusUnboundByAdmin {
			unbound = &logs[i]
			break
		}
	}
	require.NotNil(t, unbound, "unbind must be recorded in the validation log")
	assert.Equal(t, "MACHINE-A", unbound.MachineID, "log records the machine the passcode was bound to")
	assert.Equal(t, "CLI", unbound.Address)
}

func TestUnbindErrors(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	engine, st := newTestEngine(t, clock)
	seedPasscode(t, st, "FRESH000", 1)

	_, err := engine.Unbind(ctx, "MISSING0", "CLI")
	assert.ErrorIs(t, err, passcode.ErrPasscodeNotFound)

	_, err = engine.Unbind(ctx, "FRESH000", "CLI")
	assert.ErrorIs(t, err, passcode.ErrNotBound)
}

func TestCheckSession(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	engine, st := newTestEngine(t, clock)
	seedPasscode(t, st, "ABCD1234", 1)

	result, err := engine.Validate(ctx, "ABCD1234", "MACHINE-A", "10.0.0.1")
	require.NoError(t, err)

	status, err := engine.CheckSession(ctx, result.SessionToken, "MACHINE-A")
	require.NoError(t, err)
	assert.False(t, status.PasscodeExpired)
	assert.Equal(t, "2024-07-10", status.ExpiryDate.Format(passcode.DateLayout))

	// Same token from another machine is not a valid session.
	_, err = engine.CheckSession(ctx, result.SessionToken, "MACHINE-B")
	assert.ErrorIs(t, err, passcode.ErrInvalidSession)

	_, err = engine.CheckSession(ctx, "deadbeef", "MACHINE-A")
	assert.ErrorIs(t, err, passcode.ErrInvalidSession)
}

func TestCheckSessionExpiredSessionWinsOverLivePasscode(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	engine, st := newTestEngine(t, clock)
	seedPasscode(t, st, "ABCD1234", 1)

	result, err := engine.Validate(ctx, "ABCD1234", "MACHINE-A", "10.0.0.1")
	require.NoError(t, err)

	// 25 hours later the session is past its 24h window even though the
	// passcode itself is still valid.
	clock.Advance(25 * time.Hour)

	_, err = engine.CheckSession(ctx, result.SessionToken, "MACHINE-A")
	assert.ErrorIs(t, err, passcode.ErrSessionExpired)
}

func TestCheckSessionReportsExpiredPasscode(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	engine, st := newTestEngine(t, clock, passcode.WithSessionTTL(60*24*time.Hour))
	seedPasscode(t, st, "ABCD1234", 1)

	result, err := engine.Validate(ctx, "ABCD1234", "MACHINE-A", "10.0.0.1")
	require.NoError(t, err)

	// 40 days later the passcode has expired but the long-lived session has
	// not: the session stays valid and carries the passcode expiry state.
	clock.Advance(40 * 24 * time.Hour)

	status, err := engine.CheckSession(ctx, result.SessionToken, "MACHINE-A")
	require.NoError(t, err)
	assert.True(t, status.PasscodeExpired)
	assert.Equal(t, "2024-07-10", status.ExpiryDate.Format(passcode.DateLayout))
}

// failingLog always errors, standing in for an unavailable audit sink.
type failingLog struct{}

func (failingLog) Append(context.Context, string, string, passcode.Status, string) error {
	return errors.New("log sink unavailable")
}

func TestValidateSucceedsWhenAuditLogFails(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	stores := st.Stores()
	stores.Log = failingLog{}
	engine := passcode.NewEngine(stores, st, testLogger(), passcode.WithClock(clock.Now))

	require.NoError(t, st.Stores().Passcodes.Insert(ctx, "ABCD1234", 1))

	result, err := engine.Validate(ctx, "ABCD1234", "MACHINE-A", "10.0.0.1")
	require.NoError(t, err, "audit failures must never change the operation outcome")
	assert.NotEmpty(t, result.SessionToken)
}
