package lending

import "math/big"

// RateModel is the single linear-utilization interest model used by every
// pool. It is pure: each method derives its result from the supplied cash and
// borrow totals without touching pool state. All parameters are 1e18-scaled
// rates per accrual period.
type RateModel struct {
	// BaseRate is the borrow rate at zero utilization. It doubles as the
	// bootstrap exchange rate: the first depositor into an empty pool is
	// priced at BaseRate/1e18 underlying units per share.
	BaseRate *big.Int
	// Multiplier is the borrow rate increase per unit of utilization.
	Multiplier *big.Int
	// BorrowRateMax is a hard ceiling; a computed borrow rate at or above it
	// aborts the operation rather than being clamped.
	BorrowRateMax *big.Int
	// ReserveFactor is the share of borrow interest withheld from suppliers.
	ReserveFactor *big.Int
}

// NewRateModel constructs a model, cloning the inputs so callers cannot
// mutate the configured parameters afterwards.
func NewRateModel(baseRate, multiplier, borrowRateMax, reserveFactor *big.Int) *RateModel {
	return &RateModel{
		BaseRate:      cloneBig(baseRate),
		Multiplier:    cloneBig(multiplier),
		BorrowRateMax: cloneBig(borrowRateMax),
		ReserveFactor: cloneBig(reserveFactor),
	}
}

// UtilizationRate returns borrows / (cash + borrows), 1e18 scaled. A market
// with no borrows is defined to have zero utilization.
func (m *RateModel) UtilizationRate(cash, borrows *big.Int) *big.Int {
	if borrows == nil || borrows.Sign() == 0 {
		return big.NewInt(0)
	}
	total := new(big.Int).Add(clampZero(cash), borrows)
	return divScaled(borrows, total)
}

// BorrowRate returns baseRate + utilization * multiplier. Rates at or above
// BorrowRateMax are rejected with ErrBorrowRateExceedsMax.
func (m *RateModel) BorrowRate(cash, borrows *big.Int) (*big.Int, error) {
	utilization := m.UtilizationRate(cash, borrows)
	rate := new(big.Int).Add(m.BaseRate, mulScaled(utilization, m.Multiplier))
	if m.BorrowRateMax != nil && m.BorrowRateMax.Sign() > 0 && rate.Cmp(m.BorrowRateMax) >= 0 {
		return nil, ErrBorrowRateExceedsMax
	}
	return rate, nil
}

// SupplyRate returns utilization * borrowRate * (1 - reserveFactor), i.e. the
// borrow-side interest flowing to suppliers after the reserve cut.
func (m *RateModel) SupplyRate(cash, borrows *big.Int) (*big.Int, error) {
	borrowRate, err := m.BorrowRate(cash, borrows)
	if err != nil {
		return nil, err
	}
	utilization := m.UtilizationRate(cash, borrows)
	oneMinusReserve := new(big.Int).Sub(oneScale, clampZero(m.ReserveFactor))
	if oneMinusReserve.Sign() < 0 {
		oneMinusReserve.SetInt64(0)
	}
	rate := new(big.Int).Mul(utilization, borrowRate)
	rate.Mul(rate, oneMinusReserve)
	return rate.Quo(rate, doubleScale), nil
}

// ExchangeRate returns the underlying value backing one share as a
// 1e18-scaled quotient: (cash + totalBorrows) * 1e18 / totalSupply. An empty
// pool falls back to BaseRate, the bootstrap convention fixing the first
// depositor's share price.
func (m *RateModel) ExchangeRate(cash, totalBorrows, totalSupply *big.Int) *big.Int {
	if totalSupply == nil || totalSupply.Sign() == 0 {
		return cloneBig(m.BaseRate)
	}
	backing := new(big.Int).Add(clampZero(cash), clampZero(totalBorrows))
	return divScaled(backing, totalSupply)
}
