package store

import (
	"context"
	"fmt"
	"time"

	"passauth/internal/passcode"
)

// Stats is the aggregate view served by /api/stats and `passadmin stats`.
type Stats struct {
	TotalPasscodes   int64 `json:"total_passcodes"`
	UsedPasscodes    int64 `json:"used_passcodes"`
	ActiveSessions   int64 `json:"active_sessions"`
	ExpiredPasscodes int64 `json:"expired_passcodes"`
}

// Stats computes the aggregate counts. Both timestamp formats sort
// lexicographically, so the comparisons run as plain string predicates.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	now := time.Now().UTC()
	var out Stats

	queries := []struct {
		dest  *int64
		query string
		args  []any
	}{
		{&out.TotalPasscodes, `SELECT COUNT(*) FROM passcodes`, nil},
		{&out.UsedPasscodes, `SELECT COUNT(*) FROM passcodes WHERE is_used = 1`, nil},
		{&out.ActiveSessions, `SELECT COUNT(*) FROM sessions WHERE expires_at > ?`,
			[]any{fmtTime(now)}},
		{&out.ExpiredPasscodes, `SELECT COUNT(*) FROM passcodes WHERE expiry_date IS NOT NULL AND expiry_date < ?`,
			[]any{now.Format(passcode.DateLayout)}},
	}
	for _, q := range queries {
		if err := s.q.QueryRowContext(ctx, q.query, q.args...).Scan(q.dest); err != nil {
			return Stats{}, fmt.Errorf("stats query: %w", err)
		}
	}
	return out, nil
}
