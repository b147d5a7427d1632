package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jucacrispim/toxicslave/internal/slaveenv"
)

func createCommand() *cli.Command {
	return &cli.Command{
		Name:   "create",
		Usage:  "scaffold a new toxicslave work directory",
		Action: runCreate,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "default port to render into the config template", Value: 7777},
			&cli.BoolFlag{Name: "no-token", Usage: "skip generating an access token"},
		},
	}
}

func runCreate(ctx context.Context, cmd *cli.Command) error {
	rootDir := cmd.Args().First()
	if rootDir == "" {
		return fmt.Errorf("create: root_dir is required")
	}

	fmt.Printf("Creating environment on `%s` for toxicslave\n", rootDir)

	if _, err := slaveenv.Bootstrap(rootDir, int(cmd.Int("port")), !cmd.Bool("no-token")); err != nil {
		return err
	}

	fmt.Println("Done!")
	return nil
}
