// Package config loads server settings from an optional TOML file and
// CREDIT_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/rover/credit-manager/internal/denom"
	"github.com/rover/credit-manager/internal/model"
	"github.com/rover/credit-manager/internal/whitelist"
)

var (
	ErrMissingOwner = errors.New("config: owner is required")
	ErrInvalidLevel = errors.New("config: invalid log level")
)

// Config holds everything the server needs at startup.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	CacheTTL    time.Duration
	LogLevel    slog.Level

	// Initial admin config, applied only when none is stored yet.
	Owner        string
	RedBank      string
	AllowedCoins []model.CoinParams

	// Seed state for the in-process red bank and price feed.
	Liquidity []model.Coin
	Prices    map[string]decimal.Decimal
}

// coinParams is the file form of an allowed coin.
type coinParams struct {
	Denom                string `mapstructure:"denom"`
	MaxLTV               string `mapstructure:"max_ltv"`
	LiquidationThreshold string `mapstructure:"liquidation_threshold"`
}

// price is the file form of a seeded oracle price. Denoms are listed as values
// rather than map keys because viper lowercases keys.
type price struct {
	Denom string `mapstructure:"denom"`
	Price string `mapstructure:"price"`
}

// New returns a viper instance with defaults and environment binding. If
// file is non-empty it is read as TOML.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("port", "8080")
	v.SetDefault("cache_ttl", "30s")
	v.SetDefault("log_level", "info")
	v.SetDefault("red_bank", "red-bank")

	v.SetEnvPrefix("CREDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unprefixed names used by the deployment environment.
	v.BindEnv("port", "CREDIT_PORT", "PORT")
	v.BindEnv("database_url", "CREDIT_DATABASE_URL", "DATABASE_URL")
	v.BindEnv("redis_url", "CREDIT_REDIS_URL", "REDIS_URL")

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}
	return v, nil
}

// Load builds and validates a Config from v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:        v.GetString("port"),
		DatabaseURL: v.GetString("database_url"),
		RedisURL:    v.GetString("redis_url"),
		CacheTTL:    v.GetDuration("cache_ttl"),
		Owner:       strings.TrimSpace(v.GetString("owner")),
		RedBank:     v.GetString("red_bank"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLevel, v.GetString("log_level"))
	}
	if cfg.Owner == "" {
		return nil, ErrMissingOwner
	}

	if s := v.GetString("liquidity"); s != "" {
		coins, err := denom.ParseCoins(s)
		if err != nil {
			return nil, fmt.Errorf("config: liquidity: %w", err)
		}
		cfg.Liquidity = coins
	}

	var raw []coinParams
	if err := v.UnmarshalKey("allowed_coins", &raw); err != nil {
		return nil, fmt.Errorf("config: allowed_coins: %w", err)
	}
	for _, p := range raw {
		params, err := p.parse()
		if err != nil {
			return nil, err
		}
		cfg.AllowedCoins = append(cfg.AllowedCoins, params)
	}
	if _, err := whitelist.NewChecker(cfg.AllowedCoins); err != nil {
		return nil, fmt.Errorf("config: allowed_coins: %w", err)
	}

	var prices []price
	if err := v.UnmarshalKey("prices", &prices); err != nil {
		return nil, fmt.Errorf("config: prices: %w", err)
	}
	cfg.Prices = make(map[string]decimal.Decimal, len(prices))
	for _, p := range prices {
		amount, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("config: price of %s: %w", p.Denom, err)
		}
		cfg.Prices[p.Denom] = amount
	}

	return cfg, nil
}

func (p coinParams) parse() (model.CoinParams, error) {
	maxLTV, err := decimal.NewFromString(p.MaxLTV)
	if err != nil {
		return model.CoinParams{}, fmt.Errorf("config: max_ltv of %s: %w", p.Denom, err)
	}
	threshold, err := decimal.NewFromString(p.LiquidationThreshold)
	if err != nil {
		return model.CoinParams{}, fmt.Errorf("config: liquidation_threshold of %s: %w", p.Denom, err)
	}
	return model.CoinParams{Denom: p.Denom, MaxLTV: maxLTV, LiquidationThreshold: threshold}, nil
}

// AdminConfig is the initial admin config described by c.
func (c *Config) AdminConfig() *model.Config {
	return &model.Config{
		Owner:        c.Owner,
		RedBank:      c.RedBank,
		AllowedCoins: c.AllowedCoins,
	}
}
