package lending

import (
	"errors"
	"math/big"
	"testing"
)

func scaled(n int64, denom int64) *big.Int {
	v := new(big.Int).Mul(big.NewInt(n), oneScale)
	return v.Quo(v, big.NewInt(denom))
}

func defaultTestModel() *RateModel {
	// 2% base, 15% multiplier, 50% ceiling, 10% reserve factor.
	return NewRateModel(scaled(2, 100), scaled(15, 100), scaled(50, 100), scaled(10, 100))
}

func TestUtilizationRate(t *testing.T) {
	model := defaultTestModel()

	if got := model.UtilizationRate(big.NewInt(1000), big.NewInt(0)); got.Sign() != 0 {
		t.Fatalf("zero borrows should give zero utilization, got %s", got)
	}
	// 500 borrowed against 1500 total = 1/3.
	got := model.UtilizationRate(big.NewInt(1000), big.NewInt(500))
	want := new(big.Int).Quo(oneScale, big.NewInt(3))
	if got.Cmp(want) != 0 {
		t.Fatalf("unexpected utilization: got %s want %s", got, want)
	}
}

func TestBorrowRateLinear(t *testing.T) {
	model := defaultTestModel()

	// Utilization 50%: rate = 0.02 + 0.5*0.15 = 0.095.
	rate, err := model.BorrowRate(big.NewInt(500), big.NewInt(500))
	if err != nil {
		t.Fatalf("borrow rate: %v", err)
	}
	want := scaled(95, 1000)
	if rate.Cmp(want) != 0 {
		t.Fatalf("unexpected borrow rate: got %s want %s", rate, want)
	}
}

func TestBorrowRateCeilingRejected(t *testing.T) {
	// Multiplier alone pushes the full-utilization rate to the ceiling.
	model := NewRateModel(scaled(2, 100), scaled(48, 100), scaled(50, 100), big.NewInt(0))
	if _, err := model.BorrowRate(big.NewInt(0), big.NewInt(1000)); !errors.Is(err, ErrBorrowRateExceedsMax) {
		t.Fatalf("expected ErrBorrowRateExceedsMax")
	}
}

func TestSupplyRate(t *testing.T) {
	model := defaultTestModel()

	// Utilization 50%, borrow rate 0.095, reserve 10%:
	// supply = 0.5 * 0.095 * 0.9 = 0.04275.
	rate, err := model.SupplyRate(big.NewInt(500), big.NewInt(500))
	if err != nil {
		t.Fatalf("supply rate: %v", err)
	}
	want := scaled(4275, 100000)
	if rate.Cmp(want) != 0 {
		t.Fatalf("unexpected supply rate: got %s want %s", rate, want)
	}
}

func TestExchangeRateBootstrap(t *testing.T) {
	model := defaultTestModel()

	// Empty pool: the exchange rate falls back to the base rate.
	got := model.ExchangeRate(big.NewInt(0), big.NewInt(0), big.NewInt(0))
	if got.Cmp(model.BaseRate) != 0 {
		t.Fatalf("bootstrap exchange rate should equal base rate: got %s", got)
	}

	// 1500 backing across 1000 shares = 1.5 underlying per share.
	got = model.ExchangeRate(big.NewInt(1000), big.NewInt(500), big.NewInt(1000))
	want := scaled(15, 10)
	if got.Cmp(want) != 0 {
		t.Fatalf("unexpected exchange rate: got %s want %s", got, want)
	}
}
