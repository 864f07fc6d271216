// Command electiond runs the election ledger node.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if err := execRootCmd(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func execRootCmd(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}
