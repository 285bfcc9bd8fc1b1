package main

import (
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
)

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func Test_commandLine_run(t *testing.T) {
	cli := &commandLine{db: &sqlx.DB{}}

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s requires a version argument", command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no command", args: []string{}, wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "migrate: no subcommand", args: []string{"migrate"}, wantErrStr: "migrate: missing goose command"},
		{name: "migrate: unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "migrate: up", args: []string{"migrate", "up"}},
		{name: "migrate: down", args: []string{"migrate", "down"}},
		{name: "migrate: status", args: []string{"migrate", "status"}},
		{name: "migrate: up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "migrate: up-to no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to requires a version argument"},
		{name: "migrate: down-to non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(append([]string{"admin"}, tt.args...))
			switch {
			case tt.wantErr != nil:
				if err != tt.wantErr {
					t.Errorf("run() = %v; want %v", err, tt.wantErr)
				}
			case tt.wantErrStr != "":
				if err == nil || err.Error() != tt.wantErrStr {
					t.Errorf("run() = %v; want %q", err, tt.wantErrStr)
				}
			default:
				if err != nil {
					t.Errorf("run() failed: %v", err)
				}
			}
		})
	}
}
