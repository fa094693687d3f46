package lending

import (
	"math/big"
	"testing"
	"time"

	"lendvault/native/bank"
	"lendvault/storage"
)

func testModuleConfig() ModuleConfig {
	return ModuleConfig{
		CloseFactorBps:          5000,
		LiquidationIncentiveBps: 11000,
		Pools: []PoolConfig{
			{Asset: "USDX", CollateralFactorBps: 9000, BaseRateBps: 200, MultiplierBps: 1500, BorrowRateMaxBps: 5000, ReserveFactorBps: 1000},
			{Asset: "WETH", CollateralFactorBps: 7500, BaseRateBps: 200, MultiplierBps: 1500, BorrowRateMaxBps: 5000, ReserveFactorBps: 1000},
		},
	}
}

func buildConfiguredVenue(t *testing.T) (*Manager, *bank.Ledger) {
	t.Helper()
	funds := bank.NewLedger()
	mgr, err := testModuleConfig().Build(admin, funds)
	if err != nil {
		t.Fatalf("build venue: %v", err)
	}
	feed := NewManualFeed()
	feed.Set("USDX", cloneBig(oneScale), time.Now())
	feed.Set("WETH", new(big.Int).Mul(big.NewInt(2), oneScale), time.Now())
	mgr.BindPriceFeed("USDX", feed)
	mgr.BindPriceFeed("WETH", feed)
	return mgr, funds
}

func TestStoreRoundTrip(t *testing.T) {
	mgr, funds := buildConfiguredVenue(t)
	usdx, err := mgr.Pool("USDX")
	if err != nil {
		t.Fatalf("usdx pool: %v", err)
	}
	weth, err := mgr.Pool("WETH")
	if err != nil {
		t.Fatalf("weth pool: %v", err)
	}

	if err := funds.Mint("WETH", alice, big.NewInt(2000)); err != nil {
		t.Fatalf("mint weth: %v", err)
	}
	if err := funds.Mint("USDX", bob, big.NewInt(4000)); err != nil {
		t.Fatalf("mint usdx: %v", err)
	}
	if _, err := weth.Deposit(alice, big.NewInt(2000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := usdx.Deposit(bob, big.NewInt(4000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := usdx.Borrow(alice, big.NewInt(2000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	mgr.SetBlockHeight(3)
	if err := usdx.AccrueInterest(); err != nil {
		t.Fatalf("accrue: %v", err)
	}

	db := storage.NewMemDB()
	defer db.Close()
	store := NewStore(db)
	if err := store.Save(mgr, funds, 3); err != nil {
		t.Fatalf("save: %v", err)
	}

	restoredFunds := bank.NewLedger()
	restoredMgr, err := testModuleConfig().Build(admin, restoredFunds)
	if err != nil {
		t.Fatalf("rebuild venue: %v", err)
	}
	height, err := NewStore(db).Load(restoredMgr, restoredFunds)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if height != 3 {
		t.Fatalf("restored height: %d", height)
	}

	restoredUSDX, err := restoredMgr.Pool("USDX")
	if err != nil {
		t.Fatalf("restored usdx: %v", err)
	}
	restoredWETH, err := restoredMgr.Pool("WETH")
	if err != nil {
		t.Fatalf("restored weth: %v", err)
	}

	if got, want := restoredUSDX.TotalBorrows(), usdx.TotalBorrows(); got.Cmp(want) != 0 {
		t.Fatalf("total borrows: got %s want %s", got, want)
	}
	if got, want := restoredUSDX.BorrowIndex(), usdx.BorrowIndex(); got.Cmp(want) != 0 {
		t.Fatalf("borrow index: got %s want %s", got, want)
	}
	if got := restoredUSDX.LastAccrualTime(); got != 3 {
		t.Fatalf("last accrual: %d", got)
	}
	if got, want := restoredUSDX.GetBorrowBalance(alice), usdx.GetBorrowBalance(alice); got.Cmp(want) != 0 {
		t.Fatalf("borrow balance: got %s want %s", got, want)
	}
	if got, want := restoredWETH.ShareBalance(alice), weth.ShareBalance(alice); got.Cmp(want) != 0 {
		t.Fatalf("share balance: got %s want %s", got, want)
	}
	if got, want := restoredFunds.BalanceOf("USDX", alice), funds.BalanceOf("USDX", alice); got.Cmp(want) != 0 {
		t.Fatalf("bank balance: got %s want %s", got, want)
	}
	if got, want := restoredUSDX.Cash(), usdx.Cash(); got.Cmp(want) != 0 {
		t.Fatalf("vault cash: got %s want %s", got, want)
	}
	if got := restoredMgr.MemberAssets(alice); len(got) != 2 {
		t.Fatalf("restored memberships: %v", got)
	}
	if got, want := restoredMgr.CloseFactor(), mgr.CloseFactor(); got.Cmp(want) != 0 {
		t.Fatalf("close factor: got %s want %s", got, want)
	}
}

func TestStoreLoadFreshDatabase(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	funds := bank.NewLedger()
	mgr, err := testModuleConfig().Build(admin, funds)
	if err != nil {
		t.Fatalf("build venue: %v", err)
	}
	height, err := NewStore(db).Load(mgr, funds)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if height != 0 {
		t.Fatalf("fresh database should start at height zero, got %d", height)
	}
}

func TestStoreLoadRejectsUnknownPool(t *testing.T) {
	mgr, funds := buildConfiguredVenue(t)
	if err := funds.Mint("USDX", alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	usdx, err := mgr.Pool("USDX")
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if _, err := usdx.Deposit(alice, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	db := storage.NewMemDB()
	defer db.Close()
	if err := NewStore(db).Save(mgr, funds, 1); err != nil {
		t.Fatalf("save: %v", err)
	}

	narrow := ModuleConfig{
		CloseFactorBps:          5000,
		LiquidationIncentiveBps: 11000,
		Pools: []PoolConfig{
			{Asset: "WBTC", CollateralFactorBps: 7000, BaseRateBps: 200, MultiplierBps: 1500, BorrowRateMaxBps: 5000, ReserveFactorBps: 1000},
		},
	}
	restoredFunds := bank.NewLedger()
	restoredMgr, err := narrow.Build(admin, restoredFunds)
	if err != nil {
		t.Fatalf("build narrow venue: %v", err)
	}
	if _, err := NewStore(db).Load(restoredMgr, restoredFunds); err == nil {
		t.Fatalf("load should reject state for unconfigured pools")
	}
}
