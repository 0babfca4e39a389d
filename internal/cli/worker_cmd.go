package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/relaymesh/agenttree/internal/agentthread"
	"github.com/relaymesh/agenttree/internal/diagnostics"
	"github.com/relaymesh/agenttree/internal/homedir"
	"github.com/relaymesh/agenttree/internal/ipc"
	"github.com/relaymesh/agenttree/internal/worker"
	"github.com/relaymesh/agenttree/internal/worktree"
)

// workerSubcommandName must match delegate.workerSubcommand: it's the
// argv the parent spawns this same executable with.
const workerSubcommandName = "agent-tree-worker"

// workerCmd is hidden: it's not meant to be typed by a human, only
// spawned by the delegation handler's Delegate call.
var workerCmd = &cobra.Command{
	Use:    workerSubcommandName,
	Hidden: true,
	Short:  "Internal: runs one delegated task against a scratch worktree",
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := diagnostics.Init(); err != nil {
			// Diagnostics are a debugging aid, not load-bearing; a
			// failure to open the log file must not block the worker.
			diagnostics.LogKV("cli.worker", "diagnostics init failed", "error", err)
		}

		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		root, err := homedir.WorktreesRoot()
		if err != nil {
			return err
		}

		r := ipc.NewReader(os.Stdin)
		w := ipc.NewWriter(os.Stdout)
		mgr := agentthread.NewScriptedManager()
		wtMgr := worktree.NewManager(root)

		status := worker.Run(cmd.Context(), r, w, mgr, wtMgr, cwd)
		os.Exit(status)
		return nil
	},
}
