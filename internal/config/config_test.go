package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/rover/credit-manager/internal/config"
)

const sampleTOML = `
port = "9090"
owner = "admin"
red_bank = "osmo1redbank"
cache_ttl = "45s"
log_level = "debug"
liquidity = "1000uosmo,500ibc/27394FB092D2ECCD56123C74F36E4C1F926001CEADA9CA97EA622B25F41E5EB2"

[[allowed_coins]]
denom = "uosmo"
max_ltv = "0.7"
liquidation_threshold = "0.8"

[[allowed_coins]]
denom = "ibc/27394FB092D2ECCD56123C74F36E4C1F926001CEADA9CA97EA622B25F41E5EB2"
max_ltv = 0.5
liquidation_threshold = 0.6

[[prices]]
denom = "uosmo"
price = "0.25"

[[prices]]
denom = "ibc/27394FB092D2ECCD56123C74F36E4C1F926001CEADA9CA97EA622B25F41E5EB2"
price = "11.5"
`

const ibcAtom = "ibc/27394FB092D2ECCD56123C74F36E4C1F926001CEADA9CA97EA622B25F41E5EB2"

type ConfigSuite struct {
	suite.Suite
	dir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *ConfigSuite) write(body string) string {
	path := filepath.Join(s.dir, "config.toml")
	s.Require().NoError(os.WriteFile(path, []byte(body), 0o600))
	return path
}

func (s *ConfigSuite) TestLoadFile() {
	v, err := config.New(s.write(sampleTOML))
	s.Require().NoError(err)

	cfg, err := config.Load(v)
	s.Require().NoError(err)

	s.Equal("9090", cfg.Port)
	s.Equal("admin", cfg.Owner)
	s.Equal("osmo1redbank", cfg.RedBank)
	s.Equal(45*time.Second, cfg.CacheTTL)
	s.Equal(slog.LevelDebug, cfg.LogLevel)

	s.Require().Len(cfg.Liquidity, 2)
	s.Equal("uosmo", cfg.Liquidity[0].Denom)
	s.Equal("1000", cfg.Liquidity[0].Amount.Dec())

	s.Require().Len(cfg.AllowedCoins, 2)
	s.Equal(ibcAtom, cfg.AllowedCoins[1].Denom, "denom case is preserved")
	s.True(cfg.AllowedCoins[1].MaxLTV.Equal(decimal.RequireFromString("0.5")))

	s.True(cfg.Prices["uosmo"].Equal(decimal.RequireFromString("0.25")))
	s.True(cfg.Prices[ibcAtom].Equal(decimal.RequireFromString("11.5")))

	admin := cfg.AdminConfig()
	s.Equal("admin", admin.Owner)
	s.Len(admin.AllowedCoins, 2)
}

func (s *ConfigSuite) TestDefaultsAndEnv() {
	s.T().Setenv("CREDIT_OWNER", "env-admin")
	s.T().Setenv("DATABASE_URL", "postgres://localhost/credit")
	s.T().Setenv("CREDIT_LIQUIDITY", "10uatom")

	v, err := config.New("")
	s.Require().NoError(err)
	cfg, err := config.Load(v)
	s.Require().NoError(err)

	s.Equal("env-admin", cfg.Owner)
	s.Equal("postgres://localhost/credit", cfg.DatabaseURL)
	s.Equal("8080", cfg.Port)
	s.Equal(30*time.Second, cfg.CacheTTL)
	s.Equal(slog.LevelInfo, cfg.LogLevel)
	s.Require().Len(cfg.Liquidity, 1)
	s.Equal("uatom", cfg.Liquidity[0].Denom)
	s.Empty(cfg.AllowedCoins)
	s.Empty(cfg.Prices)
}

func (s *ConfigSuite) TestEnvOverridesFile() {
	s.T().Setenv("CREDIT_PORT", "7070")

	v, err := config.New(s.write(sampleTOML))
	s.Require().NoError(err)
	cfg, err := config.Load(v)
	s.Require().NoError(err)
	s.Equal("7070", cfg.Port)
}

func (s *ConfigSuite) TestMissingOwner() {
	v, err := config.New(s.write(`port = "1"`))
	s.Require().NoError(err)
	_, err = config.Load(v)
	s.ErrorIs(err, config.ErrMissingOwner)
}

func (s *ConfigSuite) TestInvalid() {
	tests := map[string]string{
		"log level": `owner = "a"
log_level = "loud"`,
		"liquidity": `owner = "a"
liquidity = "uosmo1000"`,
		"max ltv": `owner = "a"
[[allowed_coins]]
denom = "uosmo"
max_ltv = "much"
liquidation_threshold = "0.8"`,
		"threshold below max ltv": `owner = "a"
[[allowed_coins]]
denom = "uosmo"
max_ltv = "0.8"
liquidation_threshold = "0.7"`,
		"price": `owner = "a"
[[prices]]
denom = "uosmo"
price = "cheap"`,
	}

	for name, body := range tests {
		s.Run(name, func() {
			v, err := config.New(s.write(body))
			s.Require().NoError(err)
			_, err = config.Load(v)
			s.Error(err)
		})
	}
}

func (s *ConfigSuite) TestMissingFile() {
	_, err := config.New(filepath.Join(s.dir, "absent.toml"))
	s.Error(err)
}
