package commands

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/vnykmshr/asyncsched/internal/config"
	"github.com/vnykmshr/asyncsched/internal/daemon"
	"github.com/vnykmshr/asyncsched/pkg/logging"
)

// NewRunCommand returns the run subcommand.
func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start the scheduler daemon",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-watch",
				Usage: "Do not reload the config file when it changes",
			},
		},
		Action: runDaemon,
	}
}

func runDaemon(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.LoggingOptions())
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer closer.Close()

	var manager *config.Manager
	if path != "" && !cmd.Bool("no-watch") {
		manager = config.NewManager(path, logger)
		if cfg, err = manager.Load(); err != nil {
			return err
		}
	}
	if cmd.Bool("debug") {
		logger.SetLevel(logrus.DebugLevel)
	}

	d, err := daemon.New(cfg, logger, manager)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}
