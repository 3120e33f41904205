// Package rpcserver implements the outward-facing JSON-RPC surface of
// §6: getcurrentstate, getnullstate, waitforchange and stop, served
// over HTTP.
package rpcserver

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
	"fmt"
	"net/http"
	"time"

	"github.com/filecoin-project/go-jsonrpc"
	logging "github.com/ipfs/go-log"

	"github.com/wcgcyx/xayagame/controller"
	"github.com/wcgcyx/xayagame/hash"
	"github.com/wcgcyx/xayagame/rule"
)

var log = logging.Logger("rpcserver")

// waitForChangeBound is the maximum time waitforchange blocks before
// returning the current tip regardless of whether it changed.
const waitForChangeBound = 5 * time.Second

// Opts configures the outward RPC server.
type Opts struct {
	Host string
	Port uint64
}

// Server wraps an http.Server running the game namespace.
type Server struct {
	s *http.Server
}

// gameAPIHandler implements the four game_* methods, backed by the
// controller's own read lock (Snapshot) and change signal
// (WaitForChange).
type gameAPIHandler struct {
	c *controller.Controller
	r rule.Rule
}

type StateResult struct {
	State     string `json:"state"`
	BlockHash string `json:"blockhash"`
	Height    uint64 `json:"height"`
}

type NullStateResult struct {
	BlockHash string `json:"blockhash"`
	Height    uint64 `json:"height"`
}

type ChangeResult struct {
	BlockHash string `json:"blockhash"`
}

func (h *gameAPIHandler) GetCurrentState() (StateResult, error) {
	_, tip, state, height, err := h.c.Snapshot()
	if err != nil {
		return StateResult{}, err
	}
	raw, err := h.r.GameStateToJson(state)
	if err != nil {
		return StateResult{}, err
	}
	return StateResult{State: string(raw), BlockHash: tip.Hex(), Height: height}, nil
}

func (h *gameAPIHandler) GetNullState() (NullStateResult, error) {
	_, tip, _, height, err := h.c.Snapshot()
	if err != nil {
		return NullStateResult{}, err
	}
	return NullStateResult{BlockHash: tip.Hex(), Height: height}, nil
}

func (h *gameAPIHandler) WaitForChange(prevHash string) (ChangeResult, error) {
	prev := hash.Zero
	if prevHash != "" {
		parsed, err := hash.FromHex(prevHash)
		if err != nil {
			return ChangeResult{}, err
		}
		prev = parsed
	}
	newHash, err := h.c.WaitForChange(prev, waitForChangeBound)
	if err != nil {
		return ChangeResult{}, err
	}
	return ChangeResult{BlockHash: newHash.Hex()}, nil
}

func (h *gameAPIHandler) Stop() error {
	return h.c.Stop()
}

// NewServer starts listening on opts.Host:opts.Port, serving c's state
// (rendered through r) over the game namespace.
func NewServer(opts Opts, c *controller.Controller, r rule.Rule) (*Server, error) {
	log.Infof("Start outward RPC server...")
	rpc := jsonrpc.NewServer()
	rpc.Register("game", &gameAPIHandler{c: c, r: r})

	s := &http.Server{
		Addr:           fmt.Sprintf("%v:%v", opts.Host, opts.Port),
		Handler:        rpc,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   waitForChangeBound + 5*time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.ListenAndServe()
	}()
	select {
	case <-time.After(3 * time.Second):
		log.Infof("Outward RPC server started on %v:%v.", opts.Host, opts.Port)
		return &Server{s: s}, nil
	case err := <-errChan:
		return nil, err
	}
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown() {
	log.Infof("Close outward RPC server...")
	if err := s.s.Shutdown(context.Background()); err != nil {
		log.Errorf("Fail to close outward RPC server: %v", err.Error())
		return
	}
	log.Infof("Outward RPC server closed successfully.")
}
