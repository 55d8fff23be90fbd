package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Bot config file; its storage section is used when set." type:"path" optional:""`
	Driver  string `help:"Storage driver (file, sqlite)." default:"file" enum:"file,json,sqlite,sqlite3"`
	Path    string `help:"Storage path." default:"data/reminders.json"`
	Debug   bool   `help:"Log storage diagnostics to stderr."`

	List    ListCmd    `cmd:"" help:"List reminders per destination." default:"1"`
	Export  ExportCmd  `cmd:"" help:"Write the stored state as JSON."`
	Migrate MigrateCmd `cmd:"" help:"Copy the stored state to another backend."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("remindctl"),
		kong.Description("Inspect and migrate remindbot storage."),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)

	src, err := sourceConfig(CLI.Config, CLI.Driver, CLI.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	err = kctx.Run(&Context{
		Source: src,
		Out:    os.Stdout,
		Log:    cliLogger(CLI.Debug),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
