package lending

import (
	"math/big"

	"lendvault/core/events"
	"lendvault/crypto"
)

const (
	EventTypeDeposit   = "lending.deposit"
	EventTypeWithdraw  = "lending.withdraw"
	EventTypeBorrow    = "lending.borrow"
	EventTypeRepay     = "lending.repay"
	EventTypeLiquidate = "lending.liquidate"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// NewDepositEvent is emitted after a deposit mints pool shares.
func NewDepositEvent(asset string, account crypto.Address, amount, shares *big.Int) events.Event {
	return events.Event{
		Type: EventTypeDeposit,
		Attributes: map[string]string{
			"asset":   asset,
			"account": account.String(),
			"amount":  amountString(amount),
			"shares":  amountString(shares),
		},
	}
}

// NewWithdrawEvent is emitted after a withdrawal releases underlying.
func NewWithdrawEvent(asset string, account crypto.Address, amount *big.Int) events.Event {
	return events.Event{
		Type: EventTypeWithdraw,
		Attributes: map[string]string{
			"asset":   asset,
			"account": account.String(),
			"amount":  amountString(amount),
		},
	}
}

// NewBorrowEvent is emitted after a borrow releases funds to the borrower.
func NewBorrowEvent(asset string, borrower crypto.Address, amount *big.Int) events.Event {
	return events.Event{
		Type: EventTypeBorrow,
		Attributes: map[string]string{
			"asset":    asset,
			"borrower": borrower.String(),
			"amount":   amountString(amount),
		},
	}
}

// NewRepayEvent carries the clamped amount actually pulled, not the amount
// requested.
func NewRepayEvent(asset string, borrower crypto.Address, paid *big.Int) events.Event {
	return events.Event{
		Type: EventTypeRepay,
		Attributes: map[string]string{
			"asset":    asset,
			"borrower": borrower.String(),
			"paid":     amountString(paid),
		},
	}
}

// NewLiquidateEvent records both legs of a liquidation.
func NewLiquidateEvent(repayAsset, collateralAsset string, liquidator, borrower crypto.Address, repaid, seized *big.Int) events.Event {
	return events.Event{
		Type: EventTypeLiquidate,
		Attributes: map[string]string{
			"repay_asset":      repayAsset,
			"collateral_asset": collateralAsset,
			"liquidator":       liquidator.String(),
			"borrower":         borrower.String(),
			"repaid":           amountString(repaid),
			"seized":           amountString(seized),
		},
	}
}
