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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wcgcyx/xayagame/hash"
	"github.com/wcgcyx/xayagame/internal/chatgame"
)

func TestNewCLIRegistersStartAndVersionCommands(t *testing.T) {
	r := chatgame.New(0, hash.Zero, chatgame.State{})
	app := NewCLI("chatgamed", r)

	names := make([]string, 0, len(app.Commands))
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.Contains(t, names, "start")
	assert.Contains(t, names, "version")
	assert.Equal(t, "chatgamed", app.Name)
}

func TestNewCLIVersionCommandPrintsVersion(t *testing.T) {
	r := chatgame.New(0, hash.Zero, chatgame.State{})
	app := NewCLI("chatgamed", r)
	assert.NoError(t, app.Run([]string{"chatgamed", "version"}))
}
