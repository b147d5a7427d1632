package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/jucacrispim/toxicslave/internal/slavelog"
)

func main() {
	cmd := &cli.Command{
		Name:  "toxicslave",
		Usage: "toxicbuild build worker",
		Commands: []*cli.Command{
			startCommand(),
			stopCommand(),
			restartCommand(),
			createCommand(),
			createTokenCommand(),
		},
	}

	logger := slavelog.New("toxicslave")
	slog.SetDefault(logger)

	ctx := context.Background()
	ctx = slavelog.IntoContext(ctx, logger)

	if err := cmd.Run(ctx, os.Args); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}
