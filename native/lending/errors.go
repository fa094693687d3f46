package lending

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	errNilAmount = errors.New("lending: amount not provided")

	// ErrAmountNotPositive rejects zero or negative amounts before any state
	// is touched.
	ErrAmountNotPositive = errors.New("lending: amount must be greater than zero")
	// ErrDepositTooSmall rejects deposits whose share value rounds to zero
	// at the current exchange rate.
	ErrDepositTooSmall = errors.New("lending: deposit too small to mint a share")
	// ErrNoOutstandingBorrow is returned on repay when the caller has no
	// recorded debt.
	ErrNoOutstandingBorrow = errors.New("lending: no outstanding borrow to repay")
	// ErrBorrowRateExceedsMax aborts any accrual whose computed borrow rate
	// reaches the protocol ceiling.
	ErrBorrowRateExceedsMax = errors.New("lending: borrow rate exceeds protocol maximum")
	// ErrInvalidCaller rejects privileged operations invoked by anyone other
	// than the configured owner.
	ErrInvalidCaller = errors.New("lending: caller not authorized")
	// ErrPriceFeedMissing is returned when no feed is bound for an asset.
	// Absence is fatal to the calculation, never a default of zero.
	ErrPriceFeedMissing = errors.New("lending: no price feed bound for asset")
	// ErrInvalidOraclePrice is returned when a bound feed reports a
	// non-positive price.
	ErrInvalidOraclePrice = errors.New("lending: oracle returned non-positive price")
	// ErrPoolNotFound is returned when an operation names an unknown pool.
	ErrPoolNotFound = errors.New("lending: pool not configured")
	// ErrPoolAlreadyExists is returned when registering a second pool for
	// the same underlying asset.
	ErrPoolAlreadyExists = errors.New("lending: pool already configured for asset")
	// ErrBorrowerHealthy is returned by liquidation when the borrower has no
	// shortfall.
	ErrBorrowerHealthy = errors.New("lending: borrower not eligible for liquidation")
	// ErrCloseFactorOutOfBounds rejects close factors above 100%.
	ErrCloseFactorOutOfBounds = errors.New("lending: close factor must not exceed 100%")
	// ErrLiquidationIncentiveOutOfBounds rejects incentives below 100%.
	ErrLiquidationIncentiveOutOfBounds = errors.New("lending: liquidation incentive must be at least 100%")
)

// InsufficientBalanceError reports a withdrawal or share burn exceeding the
// account's holdings.
type InsufficientBalanceError struct {
	Available *big.Int
	Requested *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("lending: insufficient balance: available %s, requested %s", e.Available, e.Requested)
}

// BorrowExceedsAvailableError reports a borrow that either exhausts pool cash
// or produces an account shortfall. Available carries the binding limit.
type BorrowExceedsAvailableError struct {
	Available *big.Int
	Requested *big.Int
}

func (e *BorrowExceedsAvailableError) Error() string {
	return fmt.Sprintf("lending: borrow amount exceeds available: available %s, requested %s", e.Available, e.Requested)
}

// CollateralShortfallError reports an operation that would leave the account
// undercollateralized by Shortfall USD (1e18 scaled).
type CollateralShortfallError struct {
	Shortfall *big.Int
}

func (e *CollateralShortfallError) Error() string {
	return fmt.Sprintf("lending: operation would leave a collateral shortfall of %s", e.Shortfall)
}

// RepayExceedsCloseFactorError reports a liquidation repay above the
// close-factor cap on the borrower's debt.
type RepayExceedsCloseFactorError struct {
	MaxRepay  *big.Int
	Requested *big.Int
}

func (e *RepayExceedsCloseFactorError) Error() string {
	return fmt.Sprintf("lending: repay exceeds close factor cap: max %s, requested %s", e.MaxRepay, e.Requested)
}
