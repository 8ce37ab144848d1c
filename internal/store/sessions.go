package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"passauth/internal/passcode"
)

// Insert persists a new session row.
func (ss *Sessions) Insert(ctx context.Context, code, machineID, token string, createdAt, expiresAt time.Time) error {
	_, err := ss.q.ExecContext(ctx,
		`INSERT INTO sessions (passcode, machine_id, session_token, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		code, machineID, token, fmtTime(createdAt), fmtTime(expiresAt))
	if isUniqueViolation(err) {
		return passcode.ErrDuplicateToken
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FindByTokenAndMachine looks up a session by token and machine identifier,
// joined with the owning passcode's expiry date.
func (ss *Sessions) FindByTokenAndMachine(ctx context.Context, token, machineID string) (*passcode.SessionJoin, error) {
	row := ss.q.QueryRowContext(ctx,
		`SELECT s.id, s.passcode, s.machine_id, s.session_token, s.created_at, s.expires_at,
		        p.expiry_date
		 FROM sessions s
		 JOIN passcodes p ON s.passcode = p.passcode
		 WHERE s.session_token = ? AND s.machine_id = ?`,
		token, machineID)

	var (
		join      passcode.SessionJoin
		createdAt string
		expiresAt string
		expiry    sql.NullString
	)
	err := row.Scan(&join.ID, &join.Passcode, &join.MachineID, &join.Token,
		&createdAt, &expiresAt, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, passcode.ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}

	if join.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse session created at: %w", err)
	}
	if join.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parse session expires at: %w", err)
	}
	// Sessions only exist for activated passcodes, so the joined expiry is
	// present unless the database has been tampered with.
	if !expiry.Valid {
		return nil, fmt.Errorf("session %d joined passcode without expiry date", join.ID)
	}
	if join.PasscodeExpiry, err = passcode.ParseDate(expiry.String); err != nil {
		return nil, fmt.Errorf("parse passcode expiry: %w", err)
	}
	return &join, nil
}

// DeleteAllForPasscode revokes every session owned by code.
func (ss *Sessions) DeleteAllForPasscode(ctx context.Context, code string) (int64, error) {
	res, err := ss.q.ExecContext(ctx, `DELETE FROM sessions WHERE passcode = ?`, code)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleted sessions rows affected: %w", err)
	}
	return n, nil
}

// SessionsForPasscode returns all sessions owned by code. Admin read path.
func (s *Store) SessionsForPasscode(ctx context.Context, code string) ([]passcode.Session, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, passcode, machine_id, session_token, created_at, expires_at
		 FROM sessions WHERE passcode = ? ORDER BY created_at DESC`, code)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []passcode.Session
	for rows.Next() {
		var (
			sess      passcode.Session
			createdAt string
			expiresAt string
		)
		if err := rows.Scan(&sess.ID, &sess.Passcode, &sess.MachineID, &sess.Token,
			&createdAt, &expiresAt); err != nil {
			return nil, err
		}
		if sess.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse session created at: %w", err)
		}
		if sess.ExpiresAt, err = parseTime(expiresAt); err != nil {
			return nil, fmt.Errorf("parse session expires at: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}
