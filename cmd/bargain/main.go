package main

import (
	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Server  ServerCmd        `cmd:"" help:"Run the bargaining game server"`
	Client  ClientCmd        `cmd:"" help:"Connect as an interactive participant"`
	Export  ExportCmd        `cmd:"" help:"Export recorded rounds as CSV"`
}

func main() {
	// Local overrides for deployments that configure via environment.
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("bargain"),
		kong.Description("Two-party bargaining experiment over WebSocket"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
