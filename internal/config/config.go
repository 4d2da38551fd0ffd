package config

import (
	"fmt"
	"os"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"gopkg.in/yaml.v2"
)

// Config holds the configuration settings for the application.
type Config struct {
	Server   *ServerConfig     `yaml:"server"`
	LogLevel string            `yaml:"log_level"`
	Network  string            `yaml:"network"`
	DB       *DBConfig         `yaml:"db"`
	RPC      *BitcoinRPCConfig `yaml:"rpc"`
	Indexer  *IndexerConfig    `yaml:"indexer"`
	Mempool  *MempoolConfig    `yaml:"mempool"`
}

// ServerConfig holds the configuration settings for the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// DBConfig selects the cosmos-db backend and location of the store.
type DBConfig struct {
	Name   string `yaml:"name"`
	Dir    string `yaml:"dir"`
	DBType string `yaml:"db_type"`
}

// BitcoinRPCConfig holds the configuration settings for Bitcoin JSON-RPC.
type BitcoinRPCConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type IndexerConfig struct {
	BlockChanBuf int           `yaml:"block_chan_buf"` // blocks fetched ahead of the store loop
	PruneDepth   int32         `yaml:"prune_depth"`    // 0 keeps every raw block
	PollInterval time.Duration `yaml:"poll_interval"`
}

type MempoolConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
	FetchWorkers int           `yaml:"fetch_workers"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate fills in defaults for missing sections and rejects settings the
// application cannot run with.
func (c *Config) Validate() error {
	if c.Server == nil {
		c.Server = &ServerConfig{}
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8332
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Minute
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 5 * time.Minute
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 5 * time.Minute
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Network == "" {
		c.Network = "mainnet"
	}
	if _, err := c.ChainParams(); err != nil {
		return err
	}
	if c.DB == nil {
		return fmt.Errorf("missing db section")
	}
	if c.DB.Name == "" {
		c.DB.Name = "chain"
	}
	if c.DB.DBType == "" {
		c.DB.DBType = "goleveldb"
	}
	if c.RPC == nil || c.RPC.URL == "" {
		return fmt.Errorf("missing rpc url")
	}
	if c.Indexer == nil {
		c.Indexer = &IndexerConfig{}
	}
	if c.Indexer.BlockChanBuf <= 0 {
		c.Indexer.BlockChanBuf = 16
	}
	if c.Indexer.PruneDepth < 0 {
		return fmt.Errorf("invalid prune_depth %d", c.Indexer.PruneDepth)
	}
	if c.Indexer.PollInterval == 0 {
		c.Indexer.PollInterval = 5 * time.Second
	}
	if c.Mempool == nil {
		c.Mempool = &MempoolConfig{}
	}
	if c.Mempool.PollInterval == 0 {
		c.Mempool.PollInterval = 2 * time.Second
	}
	if c.Mempool.FetchWorkers <= 0 {
		c.Mempool.FetchWorkers = 8
	}
	return nil
}

// ChainParams maps the configured network name to its parameters.
func (c *Config) ChainParams() (*chaincfg.Params, error) {
	switch c.Network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	}
	return nil, fmt.Errorf("unknown network %q", c.Network)
}
