package main

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
	"os"

	"github.com/wcgcyx/xayagame/cli"
	"github.com/wcgcyx/xayagame/hash"
	"github.com/wcgcyx/xayagame/internal/chatgame"
)

// xayagamed is the reference daemon for the chat game used throughout
// the property tests: state is a map of player name to their latest
// message. Embedders of the library are expected to write their own
// main.go following this one, supplying their own rule.Rule in place
// of chatgame.Game.
func main() {
	var genesisRaw [hash.Size]byte
	genesisRaw[hash.Size-1] = 1
	genesisHash, err := hash.FromBytes(genesisRaw[:])
	if err != nil {
		// This is a fixed literal; it cannot fail.
		panic(err)
	}
	r := chatgame.New(0, genesisHash, chatgame.State{})

	app := cli.NewCLI("xayagamed", r)
	if err := app.Run(os.Args); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}
