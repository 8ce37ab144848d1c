package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"passauth/internal/passcode"
)

var unbindYes bool

var unbindCmd = &cobra.Command{
	Use:   "unbind <passcode>",
	Short: "Unbind a passcode from its machine",
	Long: `Clear a passcode's machine binding and revoke its sessions. The expiry
date fixed at activation is preserved, so the passcode can be redeemed again
from another machine for the remainder of its validity.`,
	Args: cobra.ExactArgs(1),
	RunE: runUnbind,
}

func init() {
	unbindCmd.Flags().BoolVar(&unbindYes, "yes", false, "Skip the confirmation prompt")
}

func runUnbind(cmd *cobra.Command, args []string) error {
	code := args[0]

	if !confirm(fmt.Sprintf("Unbind passcode %s and revoke its sessions?", code), unbindYes) {
		fmt.Println("Aborted.")
		return nil
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	engine := newEngine(st)

	revoked, err := engine.Unbind(ctx, code, "CLI")
	if err != nil {
		switch {
		case errors.Is(err, passcode.ErrPasscodeNotFound):
			return fmt.Errorf("passcode %q not found", code)
		case errors.Is(err, passcode.ErrNotBound):
			return fmt.Errorf("passcode %q has never been activated; nothing to unbind", code)
		default:
			return fmt.Errorf("failed to unbind: %w", err)
		}
	}

	rec, err := st.Stores().Passcodes.GetByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("unbound, but failed to reload passcode: %w", err)
	}

	fmt.Printf("Unbound %s: %d sessions revoked, expiry preserved at %s\n",
		code, revoked, dateOrDash(rec.ExpiryDate))
	return nil
}
