package lending

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"lendvault/native/bank"
	"lendvault/native/common"
)

func TestAddPoolRejectsDuplicate(t *testing.T) {
	funds := bank.NewLedger()
	funds.RegisterAsset("USDX")
	mgr := NewManager(admin)

	first := NewPool("USDX", scaled(9, 10), defaultTestModel(), funds)
	if err := mgr.AddPool(first); err != nil {
		t.Fatalf("add pool: %v", err)
	}
	second := NewPool("usdx", scaled(9, 10), defaultTestModel(), funds)
	if err := mgr.AddPool(second); !errors.Is(err, ErrPoolAlreadyExists) {
		t.Fatalf("expected ErrPoolAlreadyExists, got %v", err)
	}
	if _, err := mgr.Pool("WBTC"); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected ErrPoolNotFound, got %v", err)
	}
}

func TestRegisterPoolRequiresVaultCapability(t *testing.T) {
	v := newTestVenue(t)
	if err := v.mgr.RegisterPool(alice, v.usdx, alice); !errors.Is(err, ErrInvalidCaller) {
		t.Fatalf("expected ErrInvalidCaller, got %v", err)
	}
	if err := v.mgr.RegisterPool(alice, v.usdx, v.usdx.Vault()); err != nil {
		t.Fatalf("vault registration: %v", err)
	}
	assets := v.mgr.MemberAssets(alice)
	if len(assets) != 1 || assets[0] != "USDX" {
		t.Fatalf("unexpected memberships: %v", assets)
	}
}

func TestSetCloseFactorBounds(t *testing.T) {
	v := newTestVenue(t)

	if err := v.mgr.SetCloseFactor(alice, scaled(1, 2)); !errors.Is(err, ErrInvalidCaller) {
		t.Fatalf("non-admin update accepted: %v", err)
	}
	if err := v.mgr.SetCloseFactor(admin, big.NewInt(0)); !errors.Is(err, ErrCloseFactorOutOfBounds) {
		t.Fatalf("zero close factor accepted: %v", err)
	}
	over := new(big.Int).Add(cloneBig(oneScale), big.NewInt(1))
	if err := v.mgr.SetCloseFactor(admin, over); !errors.Is(err, ErrCloseFactorOutOfBounds) {
		t.Fatalf("close factor above one accepted: %v", err)
	}
	if err := v.mgr.SetCloseFactor(admin, scaled(1, 4)); err != nil {
		t.Fatalf("set close factor: %v", err)
	}
	if got := v.mgr.CloseFactor(); got.Cmp(scaled(1, 4)) != 0 {
		t.Fatalf("close factor not applied: %s", got)
	}
}

func TestSetLiquidationIncentiveBounds(t *testing.T) {
	v := newTestVenue(t)

	below := scaled(9, 10)
	if err := v.mgr.SetLiquidationIncentive(admin, below); !errors.Is(err, ErrLiquidationIncentiveOutOfBounds) {
		t.Fatalf("sub-par incentive accepted: %v", err)
	}
	above := scaled(16, 10)
	if err := v.mgr.SetLiquidationIncentive(admin, above); !errors.Is(err, ErrLiquidationIncentiveOutOfBounds) {
		t.Fatalf("excessive incentive accepted: %v", err)
	}
	if err := v.mgr.SetLiquidationIncentive(admin, scaled(105, 100)); err != nil {
		t.Fatalf("set incentive: %v", err)
	}
	if got := v.mgr.LiquidationIncentive(); got.Cmp(scaled(105, 100)) != 0 {
		t.Fatalf("incentive not applied: %s", got)
	}
}

func TestEffectiveCollateralAcrossPools(t *testing.T) {
	v := newTestVenue(t)
	v.fund(t, "USDX", alice, 100)
	v.fund(t, "WETH", alice, 20)

	if _, err := v.usdx.Deposit(alice, big.NewInt(100)); err != nil {
		t.Fatalf("deposit usdx: %v", err)
	}
	if _, err := v.weth.Deposit(alice, big.NewInt(20)); err != nil {
		t.Fatalf("deposit weth: %v", err)
	}

	// 100 USDX * 0.9 * $1 + 20 WETH * 0.75 * $2 = 90 + 30 = 120.
	value, err := v.mgr.CalculateEffectiveCollateralValue(alice)
	if err != nil {
		t.Fatalf("collateral value: %v", err)
	}
	if value.Cmp(big.NewInt(120)) != 0 {
		t.Fatalf("unexpected collateral value: %s", value)
	}
}

func TestAccountLiquidityExclusivity(t *testing.T) {
	v := newTestVenue(t)
	v.fund(t, "WETH", alice, 1000)
	v.fund(t, "USDX", bob, 4000)

	if _, err := v.weth.Deposit(alice, big.NewInt(1000)); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	if _, err := v.usdx.Deposit(bob, big.NewInt(4000)); err != nil {
		t.Fatalf("seed liquidity: %v", err)
	}
	if err := v.usdx.Borrow(alice, big.NewInt(1000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	liquidity, shortfall, err := v.mgr.AccountLiquidity(alice)
	if err != nil {
		t.Fatalf("account liquidity: %v", err)
	}
	// Collateral $1500, borrows $1000: $500 spare, no shortfall.
	if liquidity.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("unexpected liquidity: %s", liquidity)
	}
	if shortfall.Sign() != 0 {
		t.Fatalf("healthy account reports shortfall: %s", shortfall)
	}
}

func TestHypotheticalLiquidityWithRedeem(t *testing.T) {
	v := newTestVenue(t)
	v.fund(t, "WETH", alice, 1000)
	v.fund(t, "USDX", bob, 4000)

	if _, err := v.weth.Deposit(alice, big.NewInt(1000)); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	if _, err := v.usdx.Deposit(bob, big.NewInt(4000)); err != nil {
		t.Fatalf("seed liquidity: %v", err)
	}
	if err := v.usdx.Borrow(alice, big.NewInt(1200)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	// Redeeming 400 WETH drops collateral to 600*0.75*2 = $900 against
	// $1200 of debt: a $300 shortfall.
	_, shortfall, err := v.mgr.HypotheticalAccountLiquidity(alice, v.weth, big.NewInt(400), nil)
	if err != nil {
		t.Fatalf("hypothetical liquidity: %v", err)
	}
	if shortfall.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("unexpected shortfall: %s", shortfall)
	}
}

func TestLiquidityFailsWithoutFeed(t *testing.T) {
	funds := bank.NewLedger()
	funds.RegisterAsset("USDX")
	mgr := NewManager(admin)
	pool := NewPool("USDX", scaled(9, 10), defaultTestModel(), funds)
	if err := mgr.AddPool(pool); err != nil {
		t.Fatalf("add pool: %v", err)
	}
	if err := funds.Mint("USDX", alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := pool.Deposit(alice, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if _, err := mgr.CalculateEffectiveCollateralValue(alice); !errors.Is(err, ErrPriceFeedMissing) {
		t.Fatalf("expected ErrPriceFeedMissing, got %v", err)
	}
}

// underwaterVenue puts alice $1200 in debt against collateral worth $900
// after a WETH price drop.
func underwaterVenue(t *testing.T) *venue {
	t.Helper()
	v := newTestVenue(t)
	v.fund(t, "WETH", alice, 1000)
	v.fund(t, "USDX", bob, 4000)
	v.fund(t, "USDX", carol, 2000)

	if _, err := v.weth.Deposit(alice, big.NewInt(1000)); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	if _, err := v.usdx.Deposit(bob, big.NewInt(4000)); err != nil {
		t.Fatalf("seed liquidity: %v", err)
	}
	if err := v.usdx.Borrow(alice, big.NewInt(1200)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	// $2 -> $1.20: collateral value falls to 1000*0.75*1.2 = $900.
	v.feed.Set("WETH", scaled(12, 10), time.Now())
	return v
}

func TestLiquidateBorrowSeizesDiscountedCollateral(t *testing.T) {
	v := underwaterVenue(t)

	// Repay 600 USDX ($600). With the default 1.1 incentive the seize
	// value is $660, which is 550 WETH at $1.20.
	seized, err := v.mgr.LiquidateBorrow(carol, alice, "USDX", "WETH", big.NewInt(600))
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if seized.Cmp(big.NewInt(550)) != 0 {
		t.Fatalf("unexpected seize amount: %s", seized)
	}
	if got := v.usdx.GetBorrowBalance(alice); got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("debt after liquidation: %s", got)
	}
	if got := v.funds.BalanceOf("USDX", carol); got.Cmp(big.NewInt(1400)) != 0 {
		t.Fatalf("liquidator funds: %s", got)
	}
	if got := v.weth.GetAccountBalance(carol); got.Cmp(big.NewInt(550)) != 0 {
		t.Fatalf("liquidator collateral claim: %s", got)
	}
	if got := v.weth.GetAccountBalance(alice); got.Cmp(big.NewInt(450)) != 0 {
		t.Fatalf("borrower collateral claim: %s", got)
	}
	assets := v.mgr.MemberAssets(carol)
	if len(assets) != 1 || assets[0] != "WETH" {
		t.Fatalf("liquidator not registered in collateral pool: %v", assets)
	}
}

func TestLiquidateHealthyBorrowerRejected(t *testing.T) {
	v := newTestVenue(t)
	v.fund(t, "WETH", alice, 1000)
	v.fund(t, "USDX", bob, 4000)
	v.fund(t, "USDX", carol, 500)

	if _, err := v.weth.Deposit(alice, big.NewInt(1000)); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	if _, err := v.usdx.Deposit(bob, big.NewInt(4000)); err != nil {
		t.Fatalf("seed liquidity: %v", err)
	}
	if err := v.usdx.Borrow(alice, big.NewInt(500)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	if _, err := v.mgr.LiquidateBorrow(carol, alice, "USDX", "WETH", big.NewInt(100)); !errors.Is(err, ErrBorrowerHealthy) {
		t.Fatalf("expected ErrBorrowerHealthy, got %v", err)
	}
}

func TestLiquidateRespectsCloseFactor(t *testing.T) {
	v := underwaterVenue(t)

	// Close factor 0.5 on $1200 of debt caps a single repay at 600.
	_, err := v.mgr.LiquidateBorrow(carol, alice, "USDX", "WETH", big.NewInt(601))
	var exceeds *RepayExceedsCloseFactorError
	if !errors.As(err, &exceeds) {
		t.Fatalf("expected RepayExceedsCloseFactorError, got %v", err)
	}
	if exceeds.MaxRepay.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("unexpected repay cap: %s", exceeds.MaxRepay)
	}
}

func TestLiquidateSelfRejected(t *testing.T) {
	v := underwaterVenue(t)
	if _, err := v.mgr.LiquidateBorrow(alice, alice, "USDX", "WETH", big.NewInt(100)); !errors.Is(err, ErrInvalidCaller) {
		t.Fatalf("expected ErrInvalidCaller, got %v", err)
	}
}

func TestLiquidateHonorsPause(t *testing.T) {
	v := underwaterVenue(t)
	pauses := common.NewPauses()
	pauses.Set("lending.liquidate", true)
	v.mgr.SetPauses(pauses)

	if _, err := v.mgr.LiquidateBorrow(carol, alice, "USDX", "WETH", big.NewInt(100)); !errors.Is(err, common.ErrFlowPaused) {
		t.Fatalf("expected ErrFlowPaused, got %v", err)
	}
}
