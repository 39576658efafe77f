package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/vnykmshr/asyncsched/internal/config"
)

// NewCheckCommand returns the check subcommand.
func NewCheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Validate the configuration and print the resolved values",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return err
			}

			w := cmd.Root().Writer
			fmt.Fprintln(w, "configuration OK")
			fmt.Fprintf(w, "scheduler: name=%s workers=%d slow_task_threshold=%s\n",
				cfg.Scheduler.Name, cfg.Scheduler.Workers, cfg.Scheduler.SlowTaskThreshold)
			fmt.Fprintf(w, "log: level=%s format=%s console=%t file=%q\n",
				cfg.Log.Level, cfg.Log.Format, cfg.Log.Console, cfg.Log.File.Path)
			if cfg.Metrics.Enabled {
				fmt.Fprintf(w, "metrics: addr=%s\n", cfg.Metrics.Addr)
			} else {
				fmt.Fprintln(w, "metrics: disabled")
			}
			fmt.Fprintf(w, "heartbeat: %s\n", cfg.Heartbeat)
			return nil
		},
	}
}
