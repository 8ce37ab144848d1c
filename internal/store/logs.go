package store

import (
	"context"
	"fmt"
	"time"

	"passauth/internal/passcode"
)

// Append writes one validation-log entry. The table is append-only; nothing
// in this package updates or deletes rows.
func (l *Logs) Append(ctx context.Context, code, machineID string, status passcode.Status, address string) error {
	if _, err := l.q.ExecContext(ctx,
		`INSERT INTO validation_logs (passcode, machine_id, status, ip_address, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		code, machineID, string(status), address, fmtTime(time.Now())); err != nil {
		return fmt.Errorf("append validation log: %w", err)
	}
	return nil
}

// RecentLogs returns the newest limit log entries for code. Admin read path.
func (s *Store) RecentLogs(ctx context.Context, code string, limit int) ([]passcode.LogEntry, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, passcode, machine_id, status, ip_address, timestamp
		 FROM validation_logs WHERE passcode = ?
		 ORDER BY timestamp DESC, id DESC LIMIT ?`, code, limit)
	if err != nil {
		return nil, fmt.Errorf("list validation logs: %w", err)
	}
	defer rows.Close()

	var out []passcode.LogEntry
	for rows.Next() {
		var (
			entry  passcode.LogEntry
			status string
			ts     string
		)
		if err := rows.Scan(&entry.ID, &entry.Passcode, &entry.MachineID,
			&status, &entry.Address, &ts); err != nil {
			return nil, err
		}
		entry.Status = passcode.Status(status)
		if entry.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("parse log timestamp: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
