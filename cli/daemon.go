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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log"
	"github.com/urfave/cli/v2"

	"github.com/wcgcyx/xayagame/config"
	"github.com/wcgcyx/xayagame/controller"
	"github.com/wcgcyx/xayagame/eventsub"
	"github.com/wcgcyx/xayagame/hash"
	"github.com/wcgcyx/xayagame/mainloop"
	"github.com/wcgcyx/xayagame/rpcclient"
	"github.com/wcgcyx/xayagame/rpcserver"
	"github.com/wcgcyx/xayagame/rule"
	"github.com/wcgcyx/xayagame/storage"
	"github.com/wcgcyx/xayagame/storage/leveldbstore"
	"github.com/wcgcyx/xayagame/storage/sqlitestore"
	"github.com/wcgcyx/xayagame/txbatch"
	"github.com/wcgcyx/xayagame/xerr"
)

// Logger
var log = logging.Logger("cli")

// heightCacheCapacity bounds how many recent blocks' heights the
// height cache keeps; pruning does not consult the cache, so this can
// be modest.
const heightCacheCapacity = 4096

func runDaemon(c *cli.Context, gameName string, r rule.Rule) error {
	conf, err := config.NewConfig(c.String("config"))
	if err != nil {
		return err
	}
	conf.GameId = gameName
	if c.IsSet("xaya-rpc-url") {
		conf.XayaRpcUrl = c.String("xaya-rpc-url")
	}
	if c.IsSet("path") {
		conf.DataDirectory = c.String("path")
	}
	if c.IsSet("storage") {
		conf.StorageType = config.StorageType(c.String("storage"))
	}
	if c.IsSet("rpc-host") {
		conf.GameRpcHost = c.String("rpc-host")
	}
	if c.IsSet("rpc-port") {
		conf.GameRpcPort = uint64(c.Int("rpc-port"))
	}

	if conf.StorageType != config.StorageMemory {
		if err := os.MkdirAll(conf.DataDirectory, 0o755); err != nil {
			return xerr.Wrap(xerr.KindConfig, "create data directory", err)
		}
	}

	store, err := openStorage(conf)
	if err != nil {
		return err
	}
	defer store.Close()

	hc, err := storage.NewHeightCache(heightCacheCapacity)
	if err != nil {
		return xerr.Wrap(xerr.KindConfig, "create height cache", err)
	}

	log.Infof("Connecting to upstream Xaya daemon at %v...", conf.XayaRpcUrl)
	upstream, err := rpcclient.Dial(c.Context, conf.XayaRpcUrl)
	if err != nil {
		return xerr.Wrap(xerr.KindTransport, "dial upstream Xaya daemon", err)
	}
	defer upstream.Close()

	netInfo, err := upstream.GetNetworkInfo(c.Context)
	if err != nil {
		return xerr.Wrap(xerr.KindTransport, "query upstream network info", err)
	}
	chain, err := hash.ParseChainId(netInfo.Chain)
	if err != nil {
		return xerr.Wrap(xerr.KindFatalInvariant, "unrecognised upstream chain", err)
	}
	log.Infof("Connected, chain is %v.", chain)

	batch := txbatch.New(store, conf.BatchMaxSize, conf.BatchMaxWait)
	ctrl := controller.New(chain, r, store, hc,
		controller.WithPruning(conf.EnablePruning),
		controller.WithBatch(batch),
	)

	attachSub := eventsub.New(dialer(conf.SubscriberEndpoint), eventsub.Topic(eventsub.KindAttach, conf.GameId), conf.SubscriberTimeout)
	detachSub := eventsub.New(dialer(conf.SubscriberEndpoint), eventsub.Topic(eventsub.KindDetach, conf.GameId), conf.SubscriberTimeout)

	outward, err := newOutwardServer(conf, ctrl, r)
	if err != nil {
		return err
	}
	if outward != nil {
		defer outward.Shutdown()
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig
		log.Infof("Graceful shutdown requested...")
		cancel()
	}()

	return mainloop.Run(ctx, ctrl, attachSub, detachSub)
}

// newOutwardServer starts the component M server §6 selects via
// conf.GameRpcServer, or returns a nil *rpcserver.Server for
// GameRpcNone. GameRpcTCP is a recognised config value but not an
// implemented server: it fails with a ConfigError rather than
// silently running the daemon without one.
func newOutwardServer(conf config.Config, ctrl *controller.Controller, r rule.Rule) (*rpcserver.Server, error) {
	switch conf.GameRpcServer {
	case config.GameRpcNone:
		return nil, nil
	case config.GameRpcHTTP:
		outward, err := rpcserver.NewServer(rpcserver.Opts{Host: conf.GameRpcHost, Port: conf.GameRpcPort}, ctrl, r)
		if err != nil {
			return nil, xerr.Wrap(xerr.KindConfig, "start outward RPC server", err)
		}
		return outward, nil
	case config.GameRpcTCP:
		return nil, xerr.New(xerr.KindConfig, "GAME_RPC_SERVER=tcp is not implemented, use http or none")
	default:
		return nil, xerr.New(xerr.KindConfig, fmt.Sprintf("unrecognised GAME_RPC_SERVER %q", conf.GameRpcServer))
	}
}

func openStorage(conf config.Config) (storage.Storage, error) {
	switch conf.StorageType {
	case config.StorageMemory:
		return storage.NewMemoryStorage(), nil
	case config.StorageLevelDB:
		return leveldbstore.New(conf.StoragePath())
	default:
		return sqlitestore.New(conf.StoragePath())
	}
}

func dialer(endpoint string) eventsub.Dialer {
	return func() (eventsub.Transport, error) {
		return eventsub.DialWebsocketTransport(endpoint)
	}
}
