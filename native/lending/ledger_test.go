package lending

import (
	"errors"
	"math/big"
	"testing"
)

func TestShareLedgerMintBurn(t *testing.T) {
	ledger := NewShareLedger()

	if err := ledger.Mint("alice", big.NewInt(500)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Mint("bob", big.NewInt(300)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := ledger.TotalSupply(); got.Cmp(big.NewInt(800)) != 0 {
		t.Fatalf("unexpected total supply: %s", got)
	}

	if err := ledger.Burn("alice", big.NewInt(200)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := ledger.BalanceOf("alice"); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("unexpected alice balance: %s", got)
	}
	if got := ledger.TotalSupply(); got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("total supply not conserved: %s", got)
	}
}

func TestShareLedgerBurnExceedsBalance(t *testing.T) {
	ledger := NewShareLedger()
	if err := ledger.Mint("alice", big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	err := ledger.Burn("alice", big.NewInt(150))
	var insufficient *InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if insufficient.Available.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected available: %s", insufficient.Available)
	}
	if got := ledger.BalanceOf("alice"); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("balance mutated on failed burn: %s", got)
	}
}

func TestShareLedgerSeizePreservesSupply(t *testing.T) {
	ledger := NewShareLedger()
	if err := ledger.Mint("borrower", big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := ledger.Seize("borrower", "liquidator", big.NewInt(400)); err != nil {
		t.Fatalf("seize: %v", err)
	}
	if got := ledger.BalanceOf("borrower"); got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("unexpected borrower balance: %s", got)
	}
	if got := ledger.BalanceOf("liquidator"); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("unexpected liquidator balance: %s", got)
	}
	if got := ledger.TotalSupply(); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("seize changed total supply: %s", got)
	}
}

func TestShareLedgerRejectsNonPositive(t *testing.T) {
	ledger := NewShareLedger()
	if err := ledger.Mint("alice", big.NewInt(0)); !errors.Is(err, ErrAmountNotPositive) {
		t.Fatalf("zero mint accepted: %v", err)
	}
	if err := ledger.Burn("alice", big.NewInt(-1)); !errors.Is(err, ErrAmountNotPositive) {
		t.Fatalf("negative burn accepted: %v", err)
	}
}
