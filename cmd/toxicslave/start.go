package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jucacrispim/toxicslave/internal/config"
	"github.com/jucacrispim/toxicslave/internal/slaveenv"
	"github.com/jucacrispim/toxicslave/internal/slavelog"
)

const (
	defaultPidfile = "toxicslave.pid"
	defaultLogfile = "toxicslave.log"
)

func startCommand() *cli.Command {
	return &cli.Command{
		Name:   "start",
		Usage:  "start a toxicslave worker",
		Action: runStart,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "daemonize", Usage: "run in the background"},
			&cli.StringFlag{Name: "stdout", Usage: "stdout path when daemonized", Value: defaultLogfile},
			&cli.StringFlag{Name: "stderr", Usage: "stderr path when daemonized", Value: defaultLogfile},
			&cli.StringFlag{Name: "conffile", Aliases: []string{"c"}, Usage: "path to the config file; defaults to <workdir>/toxicslave.conf"},
			&cli.StringFlag{Name: "pidfile", Usage: "name of the pidfile", Value: defaultPidfile},
		},
		Description: `
Starts the build worker, reading its settings from <workdir>/toxicslave.conf
(or --conffile) into the process environment before loading internal/config.

Wiring a real network listener is out of scope (see SPEC_FULL.md's
Non-goals); this command loads settings, writes its pidfile, and blocks
until stopped, giving "stop"/"restart" a real process to operate on.`,
	}
}

func runStart(ctx context.Context, cmd *cli.Command) error {
	workdir := cmd.Args().First()
	if workdir == "" {
		return fmt.Errorf("start: workdir is required")
	}
	if _, err := os.Stat(workdir); err != nil {
		return fmt.Errorf("workdir %q does not exist", workdir)
	}

	pidfile := cmd.String("pidfile")

	if cmd.Bool("daemonize") {
		return daemonizeStart(workdir, pidfile, cmd.String("stdout"), cmd.String("stderr"), cmd.String("conffile"))
	}

	return runStartForeground(ctx, workdir, pidfile, cmd.String("conffile"))
}

func runStartForeground(ctx context.Context, workdir, pidfile, conffile string) error {
	logger := slavelog.FromContext(ctx)
	logger.Info("Starting toxicslave")

	if conffile == "" {
		conffile = filepath.Join(workdir, "toxicslave.conf")
	}
	if err := slaveenv.LoadEnvFile(conffile); err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	pidPath := filepath.Join(workdir, pidfile)
	if err := slaveenv.WritePID(pidPath, 0); err != nil {
		return fmt.Errorf("writing pidfile: %w", err)
	}
	defer os.Remove(pidPath)

	logger.Info("toxicslave settings loaded", "addr", cfg.Server.Addr, "port", cfg.Server.Port)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info("Shutting down toxicslave")
	return nil
}

// daemonizeStart re-execs the current binary without --daemonize,
// detached from the controlling terminal, so the parent can return
// immediately. Go has no fork(), so this replaces the fork-based
// daemonize() helper cmds.py relies on.
func daemonizeStart(workdir, pidfile, stdoutPath, stderrPath, conffile string) error {
	fmt.Println("Starting toxicslave")

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving own executable: %w", err)
	}

	args := []string{"start", workdir, "--pidfile", pidfile}
	if conffile != "" {
		args = append(args, "--conffile", conffile)
	}

	stdoutFile, err := os.OpenFile(filepath.Join(workdir, stdoutPath), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening stdout file: %w", err)
	}
	defer stdoutFile.Close()

	stderrFile := stdoutFile
	if stderrPath != stdoutPath {
		stderrFile, err = os.OpenFile(filepath.Join(workdir, stderrPath), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening stderr file: %w", err)
		}
		defer stderrFile.Close()
	}

	child := exec.Command(self, args...)
	child.Dir = workdir
	child.Stdout = stdoutFile
	child.Stderr = stderrFile
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		return fmt.Errorf("starting daemonized process: %w", err)
	}
	return child.Process.Release()
}
