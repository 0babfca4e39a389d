// Command agenttree spawns and brokers agent-tree delegation workers.
package main

import (
	"fmt"
	"os"

	"github.com/relaymesh/agenttree/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
