package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate passcode and session counts",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("failed to query stats: %w", err)
	}

	fmt.Printf("Total passcodes:   %d\n", stats.TotalPasscodes)
	fmt.Printf("Used passcodes:    %d\n", stats.UsedPasscodes)
	fmt.Printf("Active sessions:   %d\n", stats.ActiveSessions)
	fmt.Printf("Expired passcodes: %d\n", stats.ExpiredPasscodes)
	return nil
}
