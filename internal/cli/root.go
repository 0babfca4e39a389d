// Package cli wires the agenttree binary's cobra command tree: the
// hidden worker subcommand spawned by the delegation handler, and two
// developer-facing commands (delegate, apply-diff) that exercise the
// same tool surface the orchestrator's function-call handler uses.
package cli

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/relaymesh/agenttree/internal/buildinfo"
)

var bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89b4fa"))

var rootCmd = &cobra.Command{
	Use:     "agenttree",
	Short:   "Spawn isolated worker agents against scratch Git worktrees",
	Version: buildinfo.Current().Version,
	Long: banner() + `
agenttree delegates a coding task to a worker process running against a
detached Git worktree, brokering the worker's interactive questions and
approval requests back to this process over line-delimited JSON.

  agenttree delegate --task "..."   Run a delegated task and print its result
  agenttree apply-diff < diff.patch Apply a worker's diff to this checkout
`,
}

func banner() string {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return "agenttree\n"
	}
	return bannerStyle.Render("agenttree") + "\n"
}

// Execute runs the root command, returning the error cobra produced (if
// any) so main can translate it into a process exit code.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(delegateCmd)
	rootCmd.AddCommand(applyDiffCmd)
}
