package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/jucacrispim/toxicslave/internal/slaveenv"
)

func stopCommand() *cli.Command {
	return &cli.Command{
		Name:   "stop",
		Usage:  "stop a running toxicslave worker",
		Action: runStop,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "pidfile", Usage: "name of the pidfile", Value: defaultPidfile},
			&cli.BoolFlag{Name: "kill", Usage: "send SIGKILL instead of SIGTERM"},
		},
	}
}

func runStop(ctx context.Context, cmd *cli.Command) error {
	workdir := cmd.Args().First()
	if workdir == "" {
		return fmt.Errorf("stop: workdir is required")
	}

	fmt.Println("Stopping toxicslave")

	pidPath := filepath.Join(workdir, cmd.String("pidfile"))
	return stopWorker(pidPath, cmd.Bool("kill"))
}

func stopWorker(pidPath string, kill bool) error {
	pid, err := slaveenv.ReadPID(pidPath)
	if err != nil {
		return err
	}

	sig := syscall.SIGTERM
	if kill {
		sig = syscall.SIGKILL
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}
	if err := proc.Signal(sig); err != nil {
		return fmt.Errorf("signalling process %d: %w", pid, err)
	}

	if sig != syscall.SIGKILL {
		fmt.Println("Waiting for the process shutdown")
		for slaveenv.ProcessExists(pid) {
			time.Sleep(500 * time.Millisecond)
		}
	}

	return os.Remove(pidPath)
}
