// Package rpcclient is a JSON-RPC-over-HTTP client for the upstream
// blockchain daemon's methods (§6): getnetworkinfo, getblockchaininfo,
// getblockhash, game_sendupdates, getzmqnotifications. Idempotent
// reads are retried with exponential backoff; game_sendupdates is not,
// since it is the controller's job to decide whether to re-issue it
// while catching up.
package rpcclient

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
	"context"
	"net/http"
	"time"

	"github.com/filecoin-project/go-jsonrpc"
	logging "github.com/ipfs/go-log"
)

var log = logging.Logger("rpcclient")

const (
	initialBackoff = 50 * time.Millisecond
	maxBackoff     = 10 * time.Second
)

// NetworkInfo mirrors the upstream getnetworkinfo result, trimmed to
// the fields the controller needs to discover the chain id.
type NetworkInfo struct {
	Chain string `json:"chain"`
}

// BlockchainInfo mirrors the upstream getblockchaininfo result.
type BlockchainInfo struct {
	Chain  string `json:"chain"`
	Blocks uint64 `json:"blocks"`
	Bestblockhash string `json:"bestblockhash"`
}

// ZmqNotification mirrors one entry of getzmqnotifications.
type ZmqNotification struct {
	Type    string `json:"type"`
	Address string `json:"address"`
}

// NodeAPI is the method set the client exposes, matched one-to-one
// with §6's upstream method list and bound by jsonrpc.NewClient's
// reflection-based dispatch.
type NodeAPI struct {
	GetNetworkInfo      func(ctx context.Context) (NetworkInfo, error)
	GetBlockchainInfo   func(ctx context.Context) (BlockchainInfo, error)
	GetBlockHash        func(ctx context.Context, height uint64) (string, error)
	GameSendUpdates     func(ctx context.Context, fromBlock string, gameIds []string) (map[string]interface{}, error)
	GetZmqNotifications func(ctx context.Context) ([]ZmqNotification, error)
}

// Client wraps NodeAPI with retrying wrappers around the idempotent
// read methods.
type Client struct {
	api    NodeAPI
	closer jsonrpc.ClientCloser
}

// Dial connects to the upstream node's JSON-RPC endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	var api NodeAPI
	closer, err := jsonrpc.NewClient(ctx, url, "", &api, http.Header{})
	if err != nil {
		return nil, err
	}
	return &Client{api: api, closer: closer}, nil
}

// Close releases the underlying HTTP client.
func (c *Client) Close() {
	c.closer()
}

// GetNetworkInfo retries on transport error with exponential backoff.
func (c *Client) GetNetworkInfo(ctx context.Context) (NetworkInfo, error) {
	var out NetworkInfo
	err := retry(ctx, func() error {
		var err error
		out, err = c.api.GetNetworkInfo(ctx)
		return err
	})
	return out, err
}

// GetBlockchainInfo retries on transport error with exponential backoff.
func (c *Client) GetBlockchainInfo(ctx context.Context) (BlockchainInfo, error) {
	var out BlockchainInfo
	err := retry(ctx, func() error {
		var err error
		out, err = c.api.GetBlockchainInfo(ctx)
		return err
	})
	return out, err
}

// GetBlockHash retries on transport error with exponential backoff.
func (c *Client) GetBlockHash(ctx context.Context, height uint64) (string, error) {
	var out string
	err := retry(ctx, func() error {
		var err error
		out, err = c.api.GetBlockHash(ctx, height)
		return err
	})
	return out, err
}

// GameSendUpdates is not retried: the caller decides whether and how
// to re-issue it.
func (c *Client) GameSendUpdates(ctx context.Context, fromBlock string, gameIds []string) (map[string]interface{}, error) {
	return c.api.GameSendUpdates(ctx, fromBlock, gameIds)
}

// GetZmqNotifications retries on transport error with exponential backoff.
func (c *Client) GetZmqNotifications(ctx context.Context) ([]ZmqNotification, error) {
	var out []ZmqNotification
	err := retry(ctx, func() error {
		var err error
		out, err = c.api.GetZmqNotifications(ctx)
		return err
	})
	return out, err
}

// retry calls fn, backing off exponentially from initialBackoff up to
// maxBackoff, until it succeeds or ctx is cancelled.
func retry(ctx context.Context, fn func() error) error {
	backoff := initialBackoff
	for {
		err := fn()
		if err == nil {
			return nil
		}
		log.Warnf("rpcclient: call failed, retrying in %v: %v", backoff, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
