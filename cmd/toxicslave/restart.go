package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"
)

func restartCommand() *cli.Command {
	return &cli.Command{
		Name:   "restart",
		Usage:  "restart a toxicslave worker",
		Action: runRestart,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "pidfile", Usage: "name of the pidfile", Value: defaultPidfile},
		},
	}
}

func runRestart(ctx context.Context, cmd *cli.Command) error {
	workdir := cmd.Args().First()
	if workdir == "" {
		return fmt.Errorf("restart: workdir is required")
	}

	pidfile := cmd.String("pidfile")
	if err := stopWorker(filepath.Join(workdir, pidfile), false); err != nil {
		return fmt.Errorf("stopping before restart: %w", err)
	}

	return daemonizeStart(workdir, pidfile, defaultLogfile, defaultLogfile, "")
}
