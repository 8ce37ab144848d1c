// Package cli implements the passadmin command line tool. It opens the same
// SQLite database as the server and drives the same lifecycle engine; there
// is no separate privileged API.
package cli

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"passauth/internal/config"
	"passauth/internal/passcode"
	"passauth/internal/store"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "passadmin",
	Short: "Administer license passcodes",
	Long: `passadmin manages the passcode database used by the authentication server:
batch creation, inspection, statistics and unbinding passcodes from machines.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.Default().Database.Path, "Path to the SQLite database")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(unbindCmd)
	rootCmd.AddCommand(statsCmd)
}

// openStore opens the database named by the --db flag.
func openStore() (*store.Store, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}
	return st, nil
}

// newEngine builds a lifecycle engine for CLI use. Engine logs go to stderr
// at warn level so command output stays clean.
func newEngine(st *store.Store) *passcode.Engine {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return passcode.NewEngine(st.Stores(), st, logger)
}

// confirm prompts for a yes/no answer on stdin. The skip flag (--yes)
// bypasses the prompt.
func confirm(prompt string, skip bool) bool {
	if skip {
		return true
	}
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
