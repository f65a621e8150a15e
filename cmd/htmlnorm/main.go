package main

import (
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/htmlnorm/cmd/htmlnorm/commands"
	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
	"git.home.luguber.info/inful/htmlnorm/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("htmlnorm"),
		kong.Description("Rewrite, include and compose the HTML pages of a static site."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	if err := parser.Run(&commands.Global{}, cli); err != nil {
		adapter := ferrors.NewCLIErrorAdapter(cli.Verbose, nil)
		adapter.Log("Command failed", err)
		os.Exit(adapter.ExitCodeFor(err))
	}
}
