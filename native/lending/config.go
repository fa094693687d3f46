package lending

import (
	"fmt"
	"math/big"
	"strings"

	"lendvault/crypto"
	"lendvault/native/bank"
)

// PoolConfig declares one lending pool. Fractional parameters are expressed
// in basis points so config files stay integer-only.
type PoolConfig struct {
	Asset               string `toml:"Asset"`
	CollateralFactorBps int64  `toml:"CollateralFactorBps"`
	BaseRateBps         int64  `toml:"BaseRateBps"`
	MultiplierBps       int64  `toml:"MultiplierBps"`
	BorrowRateMaxBps    int64  `toml:"BorrowRateMaxBps"`
	ReserveFactorBps    int64  `toml:"ReserveFactorBps"`
}

// ModuleConfig declares the whole lending venue: its pools and the manager's
// risk parameters.
type ModuleConfig struct {
	CloseFactorBps          int64        `toml:"CloseFactorBps"`
	LiquidationIncentiveBps int64        `toml:"LiquidationIncentiveBps"`
	FeedPriority            []string     `toml:"FeedPriority"`
	Pools                   []PoolConfig `toml:"Pools"`
}

const bpsDenominator = 10000

func fromBps(bps int64) *big.Int {
	v := new(big.Int).Mul(big.NewInt(bps), oneScale)
	return v.Quo(v, big.NewInt(bpsDenominator))
}

// Validate rejects configurations the engine would refuse at runtime, so
// operators find out at startup rather than on the first deposit.
func (c ModuleConfig) Validate() error {
	if c.CloseFactorBps <= 0 || c.CloseFactorBps > bpsDenominator {
		return fmt.Errorf("lending: CloseFactorBps must be in (0, %d], got %d", bpsDenominator, c.CloseFactorBps)
	}
	if c.LiquidationIncentiveBps < bpsDenominator || c.LiquidationIncentiveBps > bpsDenominator*3/2 {
		return fmt.Errorf("lending: LiquidationIncentiveBps must be in [%d, %d], got %d", bpsDenominator, bpsDenominator*3/2, c.LiquidationIncentiveBps)
	}
	if len(c.Pools) == 0 {
		return fmt.Errorf("lending: at least one pool must be configured")
	}
	seen := make(map[string]bool, len(c.Pools))
	for _, pool := range c.Pools {
		symbol := strings.ToUpper(strings.TrimSpace(pool.Asset))
		if symbol == "" {
			return fmt.Errorf("lending: pool asset must not be empty")
		}
		if seen[symbol] {
			return fmt.Errorf("lending: duplicate pool for asset %s", symbol)
		}
		seen[symbol] = true
		if pool.CollateralFactorBps < 0 || pool.CollateralFactorBps > bpsDenominator {
			return fmt.Errorf("lending: %s CollateralFactorBps must be in [0, %d]", symbol, bpsDenominator)
		}
		if pool.BaseRateBps <= 0 {
			return fmt.Errorf("lending: %s BaseRateBps must be positive", symbol)
		}
		if pool.MultiplierBps < 0 {
			return fmt.Errorf("lending: %s MultiplierBps must not be negative", symbol)
		}
		if pool.BorrowRateMaxBps <= pool.BaseRateBps {
			return fmt.Errorf("lending: %s BorrowRateMaxBps must exceed BaseRateBps", symbol)
		}
		if pool.ReserveFactorBps < 0 || pool.ReserveFactorBps >= bpsDenominator {
			return fmt.Errorf("lending: %s ReserveFactorBps must be in [0, %d)", symbol, bpsDenominator)
		}
	}
	return nil
}

// Build assembles the manager and its pools from the configuration. Assets
// are registered on the funds ledger as a side effect.
func (c ModuleConfig) Build(admin crypto.Address, funds *bank.Ledger) (*Manager, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	mgr := NewManager(admin)
	if err := mgr.SetCloseFactor(admin, fromBps(c.CloseFactorBps)); err != nil {
		return nil, err
	}
	if err := mgr.SetLiquidationIncentive(admin, fromBps(c.LiquidationIncentiveBps)); err != nil {
		return nil, err
	}
	for _, poolCfg := range c.Pools {
		funds.RegisterAsset(poolCfg.Asset)
		model := NewRateModel(
			fromBps(poolCfg.BaseRateBps),
			fromBps(poolCfg.MultiplierBps),
			fromBps(poolCfg.BorrowRateMaxBps),
			fromBps(poolCfg.ReserveFactorBps),
		)
		pool := NewPool(poolCfg.Asset, fromBps(poolCfg.CollateralFactorBps), model, funds)
		if err := mgr.AddPool(pool); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}
