package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jucacrispim/toxicslave/internal/slaveenv"
)

func createTokenCommand() *cli.Command {
	return &cli.Command{
		Name:   "create-token",
		Usage:  "create the access token for a toxicslave worker",
		Action: runCreateToken,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "show-encrypted", Usage: "also print the bcrypt-encrypted token"},
		},
	}
}

func runCreateToken(ctx context.Context, cmd *cli.Command) error {
	conffile := cmd.Args().First()
	if conffile == "" {
		return fmt.Errorf("create-token: conffile is required")
	}

	_, err := slaveenv.CreateToken(conffile, cmd.Bool("show-encrypted"))
	return err
}
