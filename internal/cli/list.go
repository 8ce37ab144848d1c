package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"passauth/internal/passcode"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all passcodes",
	Long:  `List all passcodes, newest first, with their binding state and expiry.`,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.ListPasscodes(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list passcodes: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PASSCODE\tSTATUS\tMACHINE\tEXPIRES\tCREATED")
	for _, rec := range records {
		machine := "-"
		if rec.MachineID != nil {
			machine = *rec.MachineID
		}
		expires := "-"
		if rec.ExpiryDate != nil {
			expires = rec.ExpiryDate.Format(passcode.DateLayout)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.Code, statusOf(rec, time.Now().UTC()), machine, expires,
			rec.CreatedAt.Format(passcode.DateLayout))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d passcodes\n", len(records))
	return nil
}

// statusOf derives the display status from the binding state and expiry.
func statusOf(rec passcode.Passcode, now time.Time) string {
	switch {
	case !rec.IsUsed:
		return "NEW"
	case rec.ExpiryDate != nil && now.After(*rec.ExpiryDate):
		return "EXPIRED"
	default:
		return "ACTIVE"
	}
}
