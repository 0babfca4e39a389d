package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/relaymesh/agenttree/internal/delegate"
)

var applyDiffCmd = &cobra.Command{
	Use:   "apply-diff",
	Short: "Apply a worker's unified diff to this checkout (reads the diff from stdin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("apply-diff: read stdin: %w", err)
		}

		result, err := delegate.ApplyDiff(cmd.Context(), string(raw))
		if err != nil {
			return err
		}
		if !result.Applied {
			return fmt.Errorf("apply-diff: git apply rejected the patch:\n%s", result.Stderr)
		}
		if result.Stdout != "" {
			fmt.Fprint(os.Stdout, result.Stdout)
		}
		fmt.Fprintln(os.Stdout, "applied")
		return nil
	},
}
