package hash

/*
 * Licensed under LGPL-3.0.
 *
 * You can get a copy of the LGPL-3.0 License at
 *
 * https://www.gnu.org/licenses/lgpl-3.0.en.html
 *
 * @wcgcyx - https://github.com/wcgcyx
 */

import "fmt"

// ChainId identifies which network a daemon is connected to. It is
// discovered once from the upstream node and pinned for the lifetime
// of the process: a later mismatch is a FatalInvariant, never silently
// tolerated.
type ChainId int

const (
	// ChainUnknown is the zero value, before discovery.
	ChainUnknown ChainId = iota
	ChainMain
	ChainTest
	ChainRegtest
)

// String implements fmt.Stringer.
func (c ChainId) String() string {
	switch c {
	case ChainMain:
		return "main"
	case ChainTest:
		return "test"
	case ChainRegtest:
		return "regtest"
	default:
		return "unknown"
	}
}

// ParseChainId maps the string returned by the upstream node's network
// info to a ChainId.
func ParseChainId(s string) (ChainId, error) {
	switch s {
	case "main":
		return ChainMain, nil
	case "test":
		return ChainTest, nil
	case "regtest":
		return ChainRegtest, nil
	default:
		return ChainUnknown, fmt.Errorf("unrecognised chain id %q", s)
	}
}
