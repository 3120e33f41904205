package cli

/*
 * Licensed under LGPL-3.0.
 *
 * You can get a copy of the LGPL-3.0 License at
 *
 * https://www.gnu.org/licenses/lgpl-3.0.en.html
 *
 * @wcgcyx - https://github.com/wcgcyx
 */

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/wcgcyx/xayagame/rule"
)

// Version is the library's release version, set at build time via
// -ldflags in the usual Go fashion; the unset default marks a
// from-source build.
var Version = "dev"

// NewCLI creates a CLI app wiring r (the embedder's game logic) to the
// state machine, for use as the embedding process's entry point.
func NewCLI(gameName string, r rule.Rule) *cli.App {
	app := &cli.App{
		Name:      gameName,
		HelpName:  gameName,
		Usage:     "A Xaya game daemon built on the xayagame state machine",
		UsageText: gameName + " [global options] command [arguments...]",
		Version:   Version,
		Description: "\n\t Connects to a Xaya daemon, tracks this game's state across\n" +
			"\t attaches and detaches, and serves it over an outward RPC API.\n",
		Authors: []*cli.Author{
			{
				Name:  "wcgcyx",
				Email: "wcgcyx@gmail.com",
			},
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:        "start",
			Usage:       "start the game daemon's syncing process",
			Description: "Start the game daemon's syncing process",
			ArgsUsage:   " ",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "config",
					Value: "",
					Usage: "specify config file",
				},
				&cli.StringFlag{
					Name:  "xaya-rpc-url",
					Value: "",
					Usage: "specify the upstream Xaya daemon RPC url",
				},
				&cli.PathFlag{
					Name:  "path",
					Value: "",
					Usage: "specify datastore path",
				},
				&cli.StringFlag{
					Name:  "storage",
					Value: "",
					Usage: "specify storage backend [memory,lmdb,sqlite]",
				},
				&cli.StringFlag{
					Name:  "rpc-host",
					Value: "",
					Usage: "specify outward game rpc service host",
				},
				&cli.IntFlag{
					Name:  "rpc-port",
					Value: 0,
					Usage: "specify outward game rpc service port",
				},
			},
			Action: func(ctx *cli.Context) error {
				return runDaemon(ctx, gameName, r)
			},
		},
		{
			Name:        "version",
			Usage:       "get version",
			Description: "Get the version",
			ArgsUsage:   " ",
			Action: func(c *cli.Context) error {
				fmt.Println("Version: ", Version)
				return nil
			},
		},
	}
	return app
}
