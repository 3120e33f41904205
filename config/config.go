package config

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
	"path/filepath"
	"time"

	logging "github.com/ipfs/go-log"
	"github.com/spf13/viper"

	"github.com/wcgcyx/xayagame/xerr"
)

// Logger
var log = logging.Logger("config")

const defaultConfigPath = ".xayagame"

// StorageType selects one of the three interchangeable Storage
// backends of §4.B/§4.C.
type StorageType string

const (
	StorageMemory  StorageType = "memory"
	StorageLevelDB StorageType = "lmdb"
	StorageSQLite  StorageType = "sqlite"
)

// GameRpcServer selects how (or whether) the outward RPC server of
// §4.M is exposed. GameRpcTCP is accepted as a configuration value
// (kept for compatibility with embedders' existing config files) but
// the daemon rejects it at startup with a ConfigError rather than
// silently running without a server; only GameRpcHTTP is implemented.
type GameRpcServer string

const (
	GameRpcNone GameRpcServer = "none"
	GameRpcHTTP GameRpcServer = "http"
	GameRpcTCP  GameRpcServer = "tcp"
)

type Config struct {
	// Global
	GlobalLoggingLevel string `mapstructure:"LOGGING"` // Log Level: FATAL, PANIC, ERROR, WARN, INFO, DEBUG.
	DataDirectory      string `mapstructure:"DATA_DIR"`
	GameId             string `mapstructure:"GAME_ID"`

	// Upstream (component N)
	XayaRpcUrl string `mapstructure:"XAYA_RPC_URL"`

	// Event transport (component F)
	SubscriberEndpoint string        `mapstructure:"SUBSCRIBER_ENDPOINT"`
	SubscriberTimeout  time.Duration `mapstructure:"SUBSCRIBER_TIMEOUT"`

	// Storage (components B/C/D)
	StorageType   StorageType `mapstructure:"STORAGE_TYPE"`
	EnablePruning int         `mapstructure:"ENABLE_PRUNING"` // negative = off, 0 = aggressive, N = keep N

	// Transaction batching (component E)
	BatchMaxSize int           `mapstructure:"BATCH_MAX_SIZE"`
	BatchMaxWait time.Duration `mapstructure:"BATCH_MAX_WAIT"`

	// Outward RPC (component M)
	GameRpcServer GameRpcServer `mapstructure:"GAME_RPC_SERVER"`
	GameRpcHost   string        `mapstructure:"GAME_RPC_HOST"`
	GameRpcPort   uint64        `mapstructure:"GAME_RPC_PORT"`
}

// DefaultConfig holds the validated fallback value for every field.
var DefaultConfig = Config{
	DataDirectory:      "$HOME/.xayagame",
	GlobalLoggingLevel: "INFO",
	XayaRpcUrl:         "http://localhost:8396",
	SubscriberEndpoint: "ws://localhost:28332",
	SubscriberTimeout:  60 * time.Second,
	StorageType:        StorageSQLite,
	EnablePruning:      -1,
	BatchMaxSize:       100,
	BatchMaxWait:       2 * time.Second,
	GameRpcServer:      GameRpcHTTP,
	GameRpcHost:        "localhost",
	GameRpcPort:        9424,
}

// NewConfig loads configuration from environment variables and from a
// YAML file: configFile if given, otherwise config.yaml under
// $HOME/.xayagame if present. Environment variables take precedence
// over the file. Out-of-range values fall back to DefaultConfig and
// are logged; an unparsable LOGGING level, an unreadable configFile and
// missing required values (GameId, XayaRpcUrl) are a ConfigError.
func NewConfig(configFile string) (Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/" + defaultConfigPath)
	if configFile != "" {
		viper.SetConfigFile(configFile)
	}
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		if configFile != "" {
			return Config{}, xerr.Wrap(xerr.KindConfig, "read config file", err)
		}
		log.Infof("No config file loaded, using environment and defaults: %v", err)
	}

	conf := Config{}

	conf.GlobalLoggingLevel = viper.GetString("LOGGING")
	if conf.GlobalLoggingLevel == "" {
		conf.GlobalLoggingLevel = DefaultConfig.GlobalLoggingLevel
	}
	logLevel, err := logging.LevelFromString(conf.GlobalLoggingLevel)
	if err != nil {
		return Config{}, xerr.Wrap(xerr.KindConfig, "invalid LOGGING level", err)
	}
	logging.SetAllLoggers(logLevel)

	conf.DataDirectory = viper.GetString("DATA_DIR")
	if conf.DataDirectory == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, xerr.Wrap(xerr.KindConfig, "resolve home directory", err)
		}
		conf.DataDirectory = filepath.Join(home, ".xayagame")
		log.Infof("DATA_DIR not defined, use default: %v", conf.DataDirectory)
	}

	conf.GameId = viper.GetString("GAME_ID")
	if conf.GameId == "" {
		return Config{}, xerr.New(xerr.KindConfig, "GAME_ID is required")
	}

	conf.XayaRpcUrl = viper.GetString("XAYA_RPC_URL")
	if conf.XayaRpcUrl == "" {
		return Config{}, xerr.New(xerr.KindConfig, "XAYA_RPC_URL is required")
	}

	conf.SubscriberEndpoint = viper.GetString("SUBSCRIBER_ENDPOINT")
	if conf.SubscriberEndpoint == "" {
		conf.SubscriberEndpoint = DefaultConfig.SubscriberEndpoint
		log.Infof("SUBSCRIBER_ENDPOINT not set, use default %v", conf.SubscriberEndpoint)
	}
	conf.SubscriberTimeout = viper.GetDuration("SUBSCRIBER_TIMEOUT")
	if conf.SubscriberTimeout <= 0 {
		conf.SubscriberTimeout = DefaultConfig.SubscriberTimeout
		log.Infof("Invalid SUBSCRIBER_TIMEOUT, use default: %v", conf.SubscriberTimeout)
	}

	conf.StorageType = StorageType(viper.GetString("STORAGE_TYPE"))
	switch conf.StorageType {
	case StorageMemory, StorageLevelDB, StorageSQLite:
	default:
		log.Infof("STORAGE_TYPE %q not recognized, use default: %v", conf.StorageType, DefaultConfig.StorageType)
		conf.StorageType = DefaultConfig.StorageType
	}

	if viper.IsSet("ENABLE_PRUNING") {
		conf.EnablePruning = viper.GetInt("ENABLE_PRUNING")
	} else {
		conf.EnablePruning = DefaultConfig.EnablePruning
	}

	conf.BatchMaxSize = viper.GetInt("BATCH_MAX_SIZE")
	if conf.BatchMaxSize <= 0 {
		conf.BatchMaxSize = DefaultConfig.BatchMaxSize
		log.Infof("BATCH_MAX_SIZE not set, use default %v", conf.BatchMaxSize)
	}
	conf.BatchMaxWait = viper.GetDuration("BATCH_MAX_WAIT")
	if conf.BatchMaxWait <= 0 {
		conf.BatchMaxWait = DefaultConfig.BatchMaxWait
		log.Infof("BATCH_MAX_WAIT not set, use default %v", conf.BatchMaxWait)
	}

	conf.GameRpcServer = GameRpcServer(viper.GetString("GAME_RPC_SERVER"))
	switch conf.GameRpcServer {
	case GameRpcNone, GameRpcHTTP, GameRpcTCP:
	default:
		log.Infof("GAME_RPC_SERVER %q not recognized, use default: %v", conf.GameRpcServer, DefaultConfig.GameRpcServer)
		conf.GameRpcServer = DefaultConfig.GameRpcServer
	}
	conf.GameRpcHost = viper.GetString("GAME_RPC_HOST")
	if conf.GameRpcHost == "" {
		conf.GameRpcHost = DefaultConfig.GameRpcHost
	}
	conf.GameRpcPort = uint64(viper.GetInt64("GAME_RPC_PORT"))
	if conf.GameRpcPort == 0 {
		conf.GameRpcPort = DefaultConfig.GameRpcPort
		log.Infof("GAME_RPC_PORT not set, use default %v", conf.GameRpcPort)
	}

	return conf, nil
}

// StoragePath is the path of the data file or directory the selected
// storage backend should open, rooted under DataDirectory.
func (c Config) StoragePath() string {
	switch c.StorageType {
	case StorageMemory:
		return ""
	case StorageLevelDB:
		return filepath.Join(c.DataDirectory, fmt.Sprintf("%s-leveldb", c.GameId))
	default:
		return filepath.Join(c.DataDirectory, fmt.Sprintf("%s.db", c.GameId))
	}
}
