package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/relaymesh/agenttree/internal/delegate"
	"github.com/relaymesh/agenttree/internal/diagnostics"
	"github.com/relaymesh/agenttree/internal/ipc"
)

var (
	delegateTask    string
	delegateContext string
	delegateTests   []string
	delegateBaseRef string
)

var delegateCmd = &cobra.Command{
	Use:   "delegate",
	Short: "Spawn a worker to perform a task against a scratch worktree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(delegateTask) == "" {
			return fmt.Errorf("delegate: --task is required")
		}
		if _, err := diagnostics.Init(); err != nil {
			diagnostics.LogKV("cli.delegate", "diagnostics init failed", "error", err)
		}

		h, err := delegate.NewHandler(newTerminalSession())
		if err != nil {
			return err
		}

		var context *string
		if strings.TrimSpace(delegateContext) != "" {
			context = &delegateContext
		}
		var baseRef *string
		if delegateBaseRef != "" {
			baseRef = &delegateBaseRef
		}

		req := ipc.NewWorkRequest(delegateTask, context, delegateTests, baseRef)
		result, err := h.Delegate(cmd.Context(), req)
		if err != nil {
			return err
		}

		printResultBox(result)
		return nil
	},
}

func init() {
	delegateCmd.Flags().StringVar(&delegateTask, "task", "", "task prompt for the worker (required)")
	delegateCmd.Flags().StringVar(&delegateContext, "context", "", "freeform additional prompt material")
	delegateCmd.Flags().StringArrayVar(&delegateTests, "test", nil, "a shell command the worker is encouraged to run (repeatable)")
	delegateCmd.Flags().StringVar(&delegateBaseRef, "base-ref", "", `git revision to branch the worktree from (default "HEAD")`)
}

var resultBoxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#89b4fa")).
	Padding(0, 1)

func printResultBox(result *ipc.WorkerResult) {
	var b strings.Builder
	fmt.Fprintf(&b, "summary: %s\n", result.Summary)
	fmt.Fprintf(&b, "worktree: %s\n", result.WorktreePath)
	fmt.Fprintf(&b, "commands run: %d\n", len(result.Commands))
	fmt.Fprintf(&b, "diff: %d byte(s)", len(result.Diff))
	fmt.Fprintln(os.Stdout, resultBoxStyle.Render(b.String()))
	if result.Diff != "" {
		fmt.Fprintln(os.Stdout, result.Diff)
	}
}
