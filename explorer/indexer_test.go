package explorer

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"lendvault/core/events"
	"lendvault/crypto"
	"lendvault/native/lending"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	return db
}

func testAccount(seed byte) crypto.Address {
	payload := make([]byte, 20)
	payload[19] = seed
	return crypto.NewAddress(crypto.AccountPrefix, payload)
}

func TestIndexerPersistsEvents(t *testing.T) {
	ix, err := NewIndexer(setupTestDB(t), nil)
	if err != nil {
		t.Fatalf("new indexer: %v", err)
	}
	alice := testAccount(1)
	bob := testAccount(2)

	deposit := lending.NewDepositEvent("USDX", alice, big.NewInt(1000), big.NewInt(50000))
	deposit.Height = 3
	ix.Emit(deposit)
	ix.Emit(lending.NewBorrowEvent("WETH", bob, big.NewInt(5)))
	ix.Emit(lending.NewRepayEvent("WETH", bob, big.NewInt(5)))

	recent, err := ix.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 indexed events, got %d", len(recent))
	}

	byAlice, err := ix.ByAccount(alice.String(), 10)
	if err != nil {
		t.Fatalf("by account: %v", err)
	}
	if len(byAlice) != 1 {
		t.Fatalf("expected 1 event for alice, got %d", len(byAlice))
	}
	if byAlice[0].Type != lending.EventTypeDeposit {
		t.Fatalf("unexpected event type %q", byAlice[0].Type)
	}
	if byAlice[0].Height != 3 {
		t.Fatalf("expected height 3, got %d", byAlice[0].Height)
	}
	if byAlice[0].Asset != "USDX" {
		t.Fatalf("expected asset USDX, got %q", byAlice[0].Asset)
	}

	byWETH, err := ix.ByAsset("weth", 10)
	if err != nil {
		t.Fatalf("by asset: %v", err)
	}
	if len(byWETH) != 2 {
		t.Fatalf("expected 2 WETH events, got %d", len(byWETH))
	}

	count, err := ix.CountByType(lending.EventTypeRepay)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 repay, got %d", count)
	}
}

func TestFlowLabels(t *testing.T) {
	alice := testAccount(1)
	cases := []struct {
		evt  events.Event
		want string
	}{
		{lending.NewDepositEvent("usdx", alice, big.NewInt(1), big.NewInt(1)), "Supplied USDX"},
		{lending.NewWithdrawEvent("WETH", alice, big.NewInt(1)), "Withdrew WETH"},
		{lending.NewBorrowEvent("USDX", alice, big.NewInt(1)), "Borrowed USDX"},
		{lending.NewRepayEvent("USDX", alice, big.NewInt(1)), "Repaid USDX"},
		{lending.NewLiquidateEvent("USDX", "WETH", alice, alice, big.NewInt(1), big.NewInt(1)), "Liquidated USDX against WETH"},
	}
	for _, tc := range cases {
		if got := FlowLabel(tc.evt); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}
