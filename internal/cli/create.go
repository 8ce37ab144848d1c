package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"passauth/internal/passcode"
)

var (
	createLength int
	createMonths int
	createCount  int
	createYes    bool
)

// maxGenerateAttempts bounds regeneration when a generated passcode collides
// with an existing one.
const maxGenerateAttempts = 10

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a batch of passcodes",
	Long: `Create a batch of never-used passcodes.

Examples:
  passadmin create
  passadmin create --length 10 --months 3 --count 100
  passadmin create --count 5 --yes`,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().IntVar(&createLength, "length", 8, "Passcode length in characters")
	createCmd.Flags().IntVar(&createMonths, "months", 1, "Validity period in months, applied at first use")
	createCmd.Flags().IntVar(&createCount, "count", 50, "Number of passcodes to create")
	createCmd.Flags().BoolVar(&createYes, "yes", false, "Skip the confirmation prompt")
}

func runCreate(cmd *cobra.Command, args []string) error {
	if createLength < 4 {
		return fmt.Errorf("passcode length must be at least 4, got %d", createLength)
	}
	if createCount < 1 {
		return fmt.Errorf("count must be at least 1, got %d", createCount)
	}

	prompt := fmt.Sprintf("Create %d passcodes of length %d with %d-month validity in %s?",
		createCount, createLength, createMonths, dbPath)
	if !confirm(prompt, createYes) {
		fmt.Println("Aborted.")
		return nil
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	passcodes := st.Stores().Passcodes
	batchID := uuid.New().String()

	created := make([]string, 0, createCount)
	for i := 0; i < createCount; i++ {
		code, err := insertUnique(ctx, passcodes)
		if err != nil {
			return fmt.Errorf("failed after creating %d of %d passcodes: %w", len(created), createCount, err)
		}
		created = append(created, code)
	}

	fmt.Printf("Batch %s: created %d passcodes (validity %d months)\n\n", batchID, len(created), createMonths)
	for i, code := range created {
		fmt.Printf("%-14s", code)
		if (i+1)%5 == 0 {
			fmt.Println()
		}
	}
	if len(created)%5 != 0 {
		fmt.Println()
	}
	return nil
}

// insertUnique generates and inserts one passcode, regenerating on the rare
// collision with an existing code.
func insertUnique(ctx context.Context, passcodes passcode.PasscodeStore) (string, error) {
	for attempt := 1; ; attempt++ {
		code := passcode.Generate(createLength)
		err := passcodes.Insert(ctx, code, createMonths)
		if err == nil {
			return code, nil
		}
		if errors.Is(err, passcode.ErrDuplicatePasscode) && attempt < maxGenerateAttempts {
			continue
		}
		return "", err
	}
}
