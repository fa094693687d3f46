package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lendvault/crypto"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func testAdminAddress(t *testing.T) string {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key.PubKey().Address().String()
}

func TestLoadParsesFullConfig(t *testing.T) {
	adminAddr := testAdminAddress(t)
	body := `
ListenAddress = ":9000"
DataDir = "/tmp/lendvault-test"
AdminAddress = "` + adminAddr + `"
Environment = "prod"

[Log]
Level = "debug"

[Gateway]
AuthEnabled = true
AuthSecret = "topsecret"
RequestTimeout = "30s"

[Oracle]
MaxQuoteAge = "90s"

[[Oracle.Prices]]
Asset = "USDX"
Price = "1000000000000000000"

[Lending]
CloseFactorBps = 5000
LiquidationIncentiveBps = 11000

[[Lending.Pools]]
Asset = "USDX"
CollateralFactorBps = 9000
BaseRateBps = 200
MultiplierBps = 1500
BorrowRateMaxBps = 5000
ReserveFactorBps = 1000

[[Genesis]]
Asset = "USDX"
Account = "` + adminAddr + `"
Amount = "1000000"
`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":9000" {
		t.Fatalf("listen address: %s", cfg.ListenAddress)
	}
	if cfg.Gateway.RequestTimeout.Duration != 30*time.Second {
		t.Fatalf("request timeout: %v", cfg.Gateway.RequestTimeout)
	}
	if cfg.Oracle.MaxQuoteAge.Duration != 90*time.Second {
		t.Fatalf("max quote age: %v", cfg.Oracle.MaxQuoteAge)
	}
	if cfg.MetricsAddress != ":9090" {
		t.Fatalf("metrics default not applied: %s", cfg.MetricsAddress)
	}
	price, err := cfg.Oracle.Prices[0].ParsedPrice()
	if err != nil {
		t.Fatalf("parse price: %v", err)
	}
	if price.String() != "1000000000000000000" {
		t.Fatalf("price: %s", price)
	}
	admin, err := cfg.Admin()
	if err != nil {
		t.Fatalf("admin: %v", err)
	}
	if admin.String() != adminAddr {
		t.Fatalf("admin round trip: %s", admin)
	}
	if !strings.HasPrefix(cfg.DatabasePath(), cfg.DataDir) {
		t.Fatalf("database path: %s", cfg.DatabasePath())
	}
}

func TestLoadRejectsMissingAdmin(t *testing.T) {
	body := `
[Lending]
CloseFactorBps = 5000
LiquidationIncentiveBps = 11000

[[Lending.Pools]]
Asset = "USDX"
CollateralFactorBps = 9000
BaseRateBps = 200
MultiplierBps = 1500
BorrowRateMaxBps = 5000
ReserveFactorBps = 1000
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected error for missing admin address")
	}
}

func TestLoadRejectsAuthWithoutSecret(t *testing.T) {
	body := `
AdminAddress = "` + testAdminAddress(t) + `"

[Gateway]
AuthEnabled = true

[Lending]
CloseFactorBps = 5000
LiquidationIncentiveBps = 11000

[[Lending.Pools]]
Asset = "USDX"
CollateralFactorBps = 9000
BaseRateBps = 200
MultiplierBps = 1500
BorrowRateMaxBps = 5000
ReserveFactorBps = 1000
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected error for enabled auth without secret")
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.AdminAddress != cfg.AdminAddress {
		t.Fatalf("admin address not persisted")
	}
}
