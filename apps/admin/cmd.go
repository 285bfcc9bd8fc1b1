package main

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tsanzi/ratiba/apps"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db *sqlx.DB
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Println("  seed                   - load the demo directory (halls, teachers, classes, subjects)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return apps.NewArgumentError("migrate: missing goose command")
		}
		return cli.migrate(args[2:])
	case "seed":
		return cli.seed()
	default:
		cli.printUsage()
		return errHelp
	}
}
