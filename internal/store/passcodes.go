package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"passauth/internal/passcode"
)

const passcodeColumns = `passcode, machine_id, validity_months, expiry_date,
	is_used, created_at, activated_at, last_validated`

// GetByCode returns the passcode record for code.
func (p *Passcodes) GetByCode(ctx context.Context, code string) (*passcode.Passcode, error) {
	row := p.q.QueryRowContext(ctx,
		`SELECT `+passcodeColumns+` FROM passcodes WHERE passcode = ?`, code)
	rec, err := scanPasscode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, passcode.ErrPasscodeNotFound
	}
	return rec, err
}

// Insert creates a never-used passcode.
func (p *Passcodes) Insert(ctx context.Context, code string, validityMonths int) error {
	_, err := p.q.ExecContext(ctx,
		`INSERT INTO passcodes (passcode, validity_months, created_at) VALUES (?, ?, ?)`,
		code, validityMonths, fmtTime(time.Now()))
	if isUniqueViolation(err) {
		return passcode.ErrDuplicatePasscode
	}
	if err != nil {
		return fmt.Errorf("insert passcode: %w", err)
	}
	return nil
}

// Activate binds a never-used passcode in a single conditional update. The
// is_used guard makes the read-modify-write atomic: when two machines race
// on the same fresh passcode, exactly one update matches a row.
func (p *Passcodes) Activate(ctx context.Context, code, machineID string, activatedAt, expiry time.Time) (bool, error) {
	res, err := p.q.ExecContext(ctx,
		`UPDATE passcodes
		 SET is_used = 1, machine_id = ?, activated_at = ?, expiry_date = ?
		 WHERE passcode = ? AND is_used = 0`,
		machineID, fmtTime(activatedAt), expiry.UTC().Format(passcode.DateLayout), code)
	if err != nil {
		return false, fmt.Errorf("activate passcode: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("activation rows affected: %w", err)
	}
	return n == 1, nil
}

// TouchLastValidated stamps the last successful validation time.
func (p *Passcodes) TouchLastValidated(ctx context.Context, code string, at time.Time) error {
	if _, err := p.q.ExecContext(ctx,
		`UPDATE passcodes SET last_validated = ? WHERE passcode = ?`,
		fmtTime(at), code); err != nil {
		return fmt.Errorf("touch last validated: %w", err)
	}
	return nil
}

// Unbind clears the machine binding and activation flag. The expiry date is
// deliberately left in place.
func (p *Passcodes) Unbind(ctx context.Context, code string) error {
	if _, err := p.q.ExecContext(ctx,
		`UPDATE passcodes SET is_used = 0, machine_id = NULL WHERE passcode = ?`,
		code); err != nil {
		return fmt.Errorf("unbind passcode: %w", err)
	}
	return nil
}

// ListPasscodes returns every passcode, newest first. Admin read path.
func (s *Store) ListPasscodes(ctx context.Context) ([]passcode.Passcode, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+passcodeColumns+` FROM passcodes ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list passcodes: %w", err)
	}
	defer rows.Close()

	var out []passcode.Passcode
	for rows.Next() {
		rec, err := scanPasscode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPasscode(row rowScanner) (*passcode.Passcode, error) {
	var (
		rec           passcode.Passcode
		machineID     sql.NullString
		expiryDate    sql.NullString
		createdAt     string
		activatedAt   sql.NullString
		lastValidated sql.NullString
	)
	if err := row.Scan(&rec.Code, &machineID, &rec.ValidityMonths, &expiryDate,
		&rec.IsUsed, &createdAt, &activatedAt, &lastValidated); err != nil {
		return nil, err
	}

	if machineID.Valid {
		rec.MachineID = &machineID.String
	}

	var err error
	if rec.ExpiryDate, err = scanNullDate(expiryDate); err != nil {
		return nil, fmt.Errorf("parse expiry date: %w", err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created at: %w", err)
	}
	if rec.ActivatedAt, err = scanNullTime(activatedAt); err != nil {
		return nil, fmt.Errorf("parse activated at: %w", err)
	}
	if rec.LastValidated, err = scanNullTime(lastValidated); err != nil {
		return nil, fmt.Errorf("parse last validated: %w", err)
	}
	return &rec, nil
}
