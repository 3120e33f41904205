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
	"github.com/stretchr/testify/require"

	"github.com/wcgcyx/xayagame/config"
	"github.com/wcgcyx/xayagame/controller"
	"github.com/wcgcyx/xayagame/hash"
	"github.com/wcgcyx/xayagame/rule"
	"github.com/wcgcyx/xayagame/storage"
	"github.com/wcgcyx/xayagame/xerr"
)

func testRule(t *testing.T) rule.Rule {
	t.Helper()
	r, err := rule.NewCallbackRule(rule.Callbacks{
		Initial: func(chain hash.ChainId) (uint64, hash.BlockHash, rule.GameState, error) {
			return 0, hash.Zero, rule.GameState("{}"), nil
		},
		ProcessForward: func(chain hash.ChainId, oldState rule.GameState, blk rule.BlockData) (rule.GameState, rule.UndoData, error) {
			return oldState, rule.UndoData(oldState), nil
		},
		ProcessBackwards: func(chain hash.ChainId, oldState rule.GameState, blk rule.BlockData, undo rule.UndoData) (rule.GameState, error) {
			return rule.GameState(undo), nil
		},
	})
	require.NoError(t, err)
	return r
}

func testController(t *testing.T) *controller.Controller {
	t.Helper()
	store := storage.NewMemoryStorage()
	t.Cleanup(func() { store.Close() })
	c := controller.New(hash.ChainTest, testRule(t), store, nil)
	require.NoError(t, c.Bootstrap())
	return c
}

// TestNewOutwardServerNoneStartsNothing exercises the GameRpcNone path
// of §4.M: no server, no error.
func TestNewOutwardServerNoneStartsNothing(t *testing.T) {
	conf := config.DefaultConfig
	conf.GameRpcServer = config.GameRpcNone

	s, err := newOutwardServer(conf, testController(t), testRule(t))
	require.NoError(t, err)
	assert.Nil(t, s)
}

// TestNewOutwardServerTCPRejected guards against silently dropping the
// outward RPC server when GAME_RPC_SERVER=tcp is configured: only
// GameRpcHTTP is an implemented server, so tcp must fail loudly with a
// ConfigError rather than starting the daemon with no server at all.
func TestNewOutwardServerTCPRejected(t *testing.T) {
	conf := config.DefaultConfig
	conf.GameRpcServer = config.GameRpcTCP

	s, err := newOutwardServer(conf, testController(t), testRule(t))
	require.Error(t, err)
	assert.Nil(t, s)
	kind, ok := xerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, xerr.KindConfig, kind)
}

// TestNewOutwardServerUnrecognisedRejected covers a GameRpcServer value
// that is neither a known literal nor one config.NewConfig would ever
// produce (it falls back to the default), exercising the switch's
// default arm directly.
func TestNewOutwardServerUnrecognisedRejected(t *testing.T) {
	conf := config.DefaultConfig
	conf.GameRpcServer = config.GameRpcServer("bogus")

	s, err := newOutwardServer(conf, testController(t), testRule(t))
	require.Error(t, err)
	assert.Nil(t, s)
	kind, ok := xerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, xerr.KindConfig, kind)
}

// TestNewOutwardServerHTTPStarts exercises the GameRpcHTTP path end to
// end against an OS-assigned port, then shuts the listener down.
func TestNewOutwardServerHTTPStarts(t *testing.T) {
	conf := config.DefaultConfig
	conf.GameRpcServer = config.GameRpcHTTP
	conf.GameRpcHost = "127.0.0.1"
	conf.GameRpcPort = 0

	s, err := newOutwardServer(conf, testController(t), testRule(t))
	require.NoError(t, err)
	require.NotNil(t, s)
	s.Shutdown()
}
