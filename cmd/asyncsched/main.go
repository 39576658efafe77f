package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vnykmshr/asyncsched/cmd/asyncsched/commands"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := commands.NewRootCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "asyncsched:", err)
		os.Exit(1)
	}
}
