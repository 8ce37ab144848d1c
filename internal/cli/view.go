package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"passauth/internal/passcode"
)

// recentLogLimit is how many validation-log entries view shows.
const recentLogLimit = 10

var viewCmd = &cobra.Command{
	Use:   "view <passcode>",
	Short: "Show a passcode's record, sessions and recent validation log",
	Args:  cobra.ExactArgs(1),
	RunE:  runView,
}

func runView(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	code := args[0]

	rec, err := st.Stores().Passcodes.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, passcode.ErrPasscodeNotFound) {
			return fmt.Errorf("passcode %q not found", code)
		}
		return fmt.Errorf("failed to load passcode: %w", err)
	}

	fmt.Printf("Passcode:        %s\n", rec.Code)
	fmt.Printf("Status:          %s\n", statusOf(*rec, time.Now().UTC()))
	fmt.Printf("Validity months: %d\n", rec.ValidityMonths)
	fmt.Printf("Machine:         %s\n", orDash(rec.MachineID))
	fmt.Printf("Expiry date:     %s\n", dateOrDash(rec.ExpiryDate))
	fmt.Printf("Created:         %s\n", rec.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Activated:       %s\n", timeOrDash(rec.ActivatedAt))
	fmt.Printf("Last validated:  %s\n", timeOrDash(rec.LastValidated))

	sessions, err := st.SessionsForPasscode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}
	fmt.Printf("\nSessions (%d):\n", len(sessions))
	if len(sessions) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOKEN\tMACHINE\tCREATED\tEXPIRES")
		for _, sess := range sessions {
			fmt.Fprintf(w, "%s...\t%s\t%s\t%s\n",
				sess.Token[:12], sess.MachineID,
				sess.CreatedAt.Format(time.RFC3339), sess.ExpiresAt.Format(time.RFC3339))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	logs, err := st.RecentLogs(ctx, code, recentLogLimit)
	if err != nil {
		return fmt.Errorf("failed to load validation log: %w", err)
	}
	fmt.Printf("\nRecent validation log (%d):\n", len(logs))
	if len(logs) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSTATUS\tMACHINE\tADDRESS")
		for _, entry := range logs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				entry.Timestamp.Format(time.RFC3339), entry.Status, entry.MachineID, entry.Address)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func dateOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(passcode.DateLayout)
}

func timeOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}
