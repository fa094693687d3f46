package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"lendvault/crypto"
	"lendvault/native/lending"
)

// Config is the full venue configuration loaded from a TOML file.
type Config struct {
	ListenAddress  string `toml:"ListenAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`
	AdminAddress   string `toml:"AdminAddress"`
	Environment    string `toml:"Environment"`

	Log     LogConfig            `toml:"Log"`
	Gateway GatewayConfig        `toml:"Gateway"`
	Indexer IndexerConfig        `toml:"Indexer"`
	Oracle  OracleConfig         `toml:"Oracle"`
	Lending lending.ModuleConfig `toml:"Lending"`
	Genesis []GenesisBalance     `toml:"Genesis"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
}

// Duration wraps time.Duration so TOML files can use strings like "90s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// GatewayConfig controls the HTTP surface.
type GatewayConfig struct {
	AuthEnabled       bool     `toml:"AuthEnabled"`
	AuthSecret        string   `toml:"AuthSecret"`
	AuthIssuer        string   `toml:"AuthIssuer"`
	AuthAudience      string   `toml:"AuthAudience"`
	RequestsPerMinute float64  `toml:"RequestsPerMinute"`
	Burst             int      `toml:"Burst"`
	RequestTimeout    Duration `toml:"RequestTimeout"`
}

// IndexerConfig controls the SQLite event indexer.
type IndexerConfig struct {
	Enabled bool   `toml:"Enabled"`
	Path    string `toml:"Path"`
}

// OracleConfig seeds the manual price feed at startup. Prices are decimal
// strings in 1e18-scaled USD units.
type OracleConfig struct {
	MaxQuoteAge Duration      `toml:"MaxQuoteAge"`
	Prices      []OraclePrice `toml:"Prices"`
}

type OraclePrice struct {
	Asset string `toml:"Asset"`
	Price string `toml:"Price"`
}

// ParsedPrice returns the configured price as a big integer.
func (p OraclePrice) ParsedPrice() (*big.Int, error) {
	trimmed := strings.TrimSpace(p.Price)
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("config: invalid price %q for asset %s", p.Price, p.Asset)
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("config: price for asset %s must be positive", p.Asset)
	}
	return value, nil
}

// GenesisBalance funds an account at first startup. Ignored once the venue
// has persisted state.
type GenesisBalance struct {
	Asset   string `toml:"Asset"`
	Account string `toml:"Account"`
	Amount  string `toml:"Amount"`
}

// ParsedAmount returns the genesis amount as a big integer.
func (g GenesisBalance) ParsedAmount() (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(g.Amount), 10)
	if !ok {
		return nil, fmt.Errorf("config: invalid genesis amount %q", g.Amount)
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("config: genesis amount for %s must be positive", g.Account)
	}
	return value, nil
}

// Load reads the configuration from path, creating a commented default when
// the file does not exist yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8080"
	}
	if strings.TrimSpace(c.MetricsAddress) == "" {
		c.MetricsAddress = ":9090"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./lendvault-data"
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "dev"
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if c.Gateway.RequestsPerMinute <= 0 {
		c.Gateway.RequestsPerMinute = 600
	}
	if c.Gateway.Burst <= 0 {
		c.Gateway.Burst = 20
	}
	if c.Gateway.RequestTimeout.Duration <= 0 {
		c.Gateway.RequestTimeout.Duration = 10 * time.Second
	}
	if c.Oracle.MaxQuoteAge.Duration <= 0 {
		c.Oracle.MaxQuoteAge.Duration = time.Minute
	}
	if c.Indexer.Enabled && strings.TrimSpace(c.Indexer.Path) == "" {
		c.Indexer.Path = filepath.Join(c.DataDir, "explorer.db")
	}
}

// Validate checks fields the daemon cannot start without.
func (c *Config) Validate() error {
	if _, err := c.Admin(); err != nil {
		return err
	}
	if err := c.Lending.Validate(); err != nil {
		return err
	}
	if c.Gateway.AuthEnabled && strings.TrimSpace(c.Gateway.AuthSecret) == "" {
		return fmt.Errorf("config: Gateway.AuthSecret is required when auth is enabled")
	}
	for _, price := range c.Oracle.Prices {
		if _, err := price.ParsedPrice(); err != nil {
			return err
		}
	}
	for _, balance := range c.Genesis {
		if _, err := balance.ParsedAmount(); err != nil {
			return err
		}
		if _, err := crypto.DecodeAddress(strings.TrimSpace(balance.Account)); err != nil {
			return fmt.Errorf("config: invalid genesis account %q: %w", balance.Account, err)
		}
	}
	return nil
}

// Admin decodes the configured admin address.
func (c *Config) Admin() (crypto.Address, error) {
	trimmed := strings.TrimSpace(c.AdminAddress)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("config: AdminAddress is required")
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("config: invalid AdminAddress: %w", err)
	}
	return addr, nil
}

// DatabasePath returns the location of the venue state database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "state")
}

func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		ListenAddress:  ":8080",
		MetricsAddress: ":9090",
		DataDir:        "./lendvault-data",
		AdminAddress:   key.PubKey().Address().String(),
		Environment:    "dev",
		Log:            LogConfig{Level: "info"},
		Gateway: GatewayConfig{
			RequestsPerMinute: 600,
			Burst:             20,
			RequestTimeout:    Duration{10 * time.Second},
		},
		Oracle: OracleConfig{MaxQuoteAge: Duration{time.Minute}},
		Lending: lending.ModuleConfig{
			CloseFactorBps:          5000,
			LiquidationIncentiveBps: 11000,
			Pools: []lending.PoolConfig{
				{Asset: "USDX", CollateralFactorBps: 9000, BaseRateBps: 200, MultiplierBps: 1500, BorrowRateMaxBps: 5000, ReserveFactorBps: 1000},
			},
		},
	}
	cfg.applyDefaults()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
