package lending

import (
	"math/big"

	"lendvault/crypto"
)

// AssetLedger is the underlying-asset transfer capability a pool depends on.
// Implementations must move funds atomically: a failed transfer leaves both
// balances untouched.
type AssetLedger interface {
	Transfer(asset string, from, to crypto.Address, amount *big.Int) error
	BalanceOf(asset string, account crypto.Address) *big.Int
}

// BorrowSnapshot records a borrower's debt principal as of the pool's borrow
// index at the time of the last borrow or repay. The current debt is derived
// as principal * currentIndex / snapshotIndex, so interest accrues without
// per-borrower writes.
type BorrowSnapshot struct {
	Principal     *big.Int
	InterestIndex *big.Int
}

// Pool owns the deposits and borrows of a single underlying asset. Interest
// accrues per elapsed height at the rate model's current borrow rate, and the
// share ledger converts between underlying amounts and proportional claims.
// Pools trust the Manager for cross-pool liquidity decisions and expose
// seizure to it alone.
type Pool struct {
	asset            string
	vault            crypto.Address
	collateralFactor *big.Int
	rates            *RateModel
	shares           *ShareLedger
	funds            AssetLedger

	totalBorrows    *big.Int
	borrowIndex     *big.Int
	lastAccrualTime uint64
	snapshots       map[string]*BorrowSnapshot

	height  uint64
	manager *Manager
}

// NewPool constructs a pool for the given asset. The collateral factor is a
// 1e18-scaled fraction in [0, 1] describing how much of this pool's value
// counts toward borrowing power.
func NewPool(asset string, collateralFactor *big.Int, rates *RateModel, funds AssetLedger) *Pool {
	return &Pool{
		asset:            asset,
		vault:            crypto.ModuleAddress("lending/pool/" + asset),
		collateralFactor: cloneBig(collateralFactor),
		rates:            rates,
		shares:           NewShareLedger(),
		funds:            funds,
		totalBorrows:     big.NewInt(0),
		borrowIndex:      cloneBig(oneScale),
		snapshots:        make(map[string]*BorrowSnapshot),
	}
}

// Asset returns the underlying asset symbol.
func (p *Pool) Asset() string { return p.asset }

// Vault returns the pool's custody address on the asset ledger.
func (p *Pool) Vault() crypto.Address { return p.vault }

// CollateralFactor returns the pool's 1e18-scaled collateral factor.
func (p *Pool) CollateralFactor() *big.Int { return cloneBig(p.collateralFactor) }

// Rates returns the pool's rate model.
func (p *Pool) Rates() *RateModel { return p.rates }

// TotalBorrows returns the outstanding principal plus accrued interest across
// all borrowers.
func (p *Pool) TotalBorrows() *big.Int { return cloneBig(p.totalBorrows) }

// BorrowIndex returns the cumulative interest accumulator. It never
// decreases.
func (p *Pool) BorrowIndex() *big.Int { return cloneBig(p.borrowIndex) }

// LastAccrualTime returns the height at which interest last accrued.
func (p *Pool) LastAccrualTime() uint64 { return p.lastAccrualTime }

// SetBlockHeight records the height used for subsequent accrual deltas.
func (p *Pool) SetBlockHeight(height uint64) {
	if p == nil {
		return
	}
	p.height = height
}

// Cash returns the idle liquidity held by the pool vault.
func (p *Pool) Cash() *big.Int {
	return p.funds.BalanceOf(p.asset, p.vault)
}

// ExchangeRate returns the current 1e18-scaled underlying-per-share rate.
func (p *Pool) ExchangeRate() *big.Int {
	return p.rates.ExchangeRate(p.Cash(), p.totalBorrows, p.shares.TotalSupply())
}

// AccrueInterest advances the borrow index and total borrows by the interest
// accumulated since the last accrual. Within a single height the operation is
// idempotent. A borrow rate at the protocol ceiling aborts the accrual, and
// with it the surrounding operation.
func (p *Pool) AccrueInterest() error {
	// A pool already accrued at or past the current height has nothing to
	// do. The rolled-back case (height reset after a failed batch accrual)
	// lands here too; without it the delta would underflow.
	if p.height <= p.lastAccrualTime {
		return nil
	}
	delta := p.height - p.lastAccrualTime
	borrowRate, err := p.rates.BorrowRate(p.Cash(), p.totalBorrows)
	if err != nil {
		return err
	}
	if p.totalBorrows.Sign() > 0 {
		// Simple interest over the elapsed interval at the current rate.
		factor := new(big.Int).Mul(borrowRate, new(big.Int).SetUint64(delta))
		interest := mulScaled(p.totalBorrows, factor)
		p.totalBorrows = new(big.Int).Add(p.totalBorrows, interest)
		p.borrowIndex = new(big.Int).Add(p.borrowIndex, mulScaled(p.borrowIndex, factor))
	}
	p.lastAccrualTime = p.height
	return nil
}

// Deposit pulls amount of underlying from the depositor into the pool vault
// and mints shares priced at the pre-deposit exchange rate, so existing
// holders are not diluted. The depositor is registered with the manager for
// cross-pool liquidity accounting.
func (p *Pool) Deposit(from crypto.Address, amount *big.Int) (*big.Int, error) {
	if amount == nil {
		return nil, errNilAmount
	}
	if amount.Sign() <= 0 {
		return nil, ErrAmountNotPositive
	}
	if err := p.AccrueInterest(); err != nil {
		return nil, err
	}

	// Sample the exchange rate before the transfer lands: the deposit is
	// valued against the pool as it stood without the incoming cash. A
	// deposit too small to buy a single share is rejected before any funds
	// move.
	rate := p.ExchangeRate()
	minted := divScaled(amount, rate)
	if minted.Sign() == 0 {
		return nil, ErrDepositTooSmall
	}

	if err := p.funds.Transfer(p.asset, from, p.vault, amount); err != nil {
		return nil, err
	}
	if err := p.shares.Mint(from.String(), minted); err != nil {
		return nil, err
	}

	if p.manager != nil {
		if err := p.manager.RegisterPool(from, p, p.vault); err != nil {
			return nil, err
		}
	}
	return minted, nil
}

// Withdraw converts amount of underlying back into shares at the current
// exchange rate, burns them and releases the underlying to the account. The
// withdrawal is rejected when it exceeds the account's balance or would leave
// the account's cross-pool position short.
func (p *Pool) Withdraw(account crypto.Address, amount *big.Int) error {
	if amount == nil {
		return errNilAmount
	}
	if amount.Sign() <= 0 {
		return ErrAmountNotPositive
	}
	if err := p.AccrueInterest(); err != nil {
		return err
	}

	rate := p.ExchangeRate()
	key := account.String()
	balance := mulScaled(p.shares.BalanceOf(key), rate)
	if amount.Cmp(balance) > 0 {
		return &InsufficientBalanceError{Available: balance, Requested: cloneBig(amount)}
	}

	// Outstanding borrows can drain the vault below an otherwise valid
	// claim; reject before burning so a failed withdrawal mutates nothing.
	cash := p.Cash()
	if amount.Cmp(cash) > 0 {
		return &InsufficientBalanceError{Available: cash, Requested: cloneBig(amount)}
	}

	if p.manager != nil {
		_, shortfall, err := p.manager.HypotheticalAccountLiquidity(account, p, amount, nil)
		if err != nil {
			return err
		}
		if shortfall.Sign() > 0 {
			return &CollateralShortfallError{Shortfall: shortfall}
		}
	}

	sharesToBurn := divScaled(amount, rate)
	if err := p.shares.Burn(key, sharesToBurn); err != nil {
		return err
	}
	return p.funds.Transfer(p.asset, p.vault, account, amount)
}

// Borrow lends amount of underlying to the caller against their cross-pool
// collateral. The hypothetical liquidity check runs against the post-borrow
// position; any shortfall rejects the borrow with the binding limit reported.
func (p *Pool) Borrow(borrower crypto.Address, amount *big.Int) error {
	if amount == nil {
		return errNilAmount
	}
	if amount.Sign() <= 0 {
		return ErrAmountNotPositive
	}
	if err := p.AccrueInterest(); err != nil {
		return err
	}

	cash := p.Cash()
	if cash.Cmp(amount) < 0 {
		return &BorrowExceedsAvailableError{Available: cash, Requested: cloneBig(amount)}
	}

	liquidity := big.NewInt(0)
	if p.manager != nil {
		var shortfall *big.Int
		var err error
		liquidity, shortfall, err = p.manager.HypotheticalAccountLiquidity(borrower, p, nil, amount)
		if err != nil {
			return err
		}
		if shortfall.Sign() > 0 {
			return &BorrowExceedsAvailableError{Available: liquidity, Requested: cloneBig(amount)}
		}
	}

	if err := p.funds.Transfer(p.asset, p.vault, borrower, amount); err != nil {
		return err
	}

	debt := new(big.Int).Add(p.borrowBalance(borrower.String()), amount)
	p.snapshots[borrower.String()] = &BorrowSnapshot{
		Principal:     debt,
		InterestIndex: cloneBig(p.borrowIndex),
	}
	p.totalBorrows = new(big.Int).Add(p.totalBorrows, amount)

	// Debt entered through a pool the borrower never supplied to must still
	// be visible to every later liquidity check.
	if p.manager != nil {
		if err := p.manager.RegisterPool(borrower, p, p.vault); err != nil {
			return err
		}
	}
	return nil
}

// Repay pulls at most the caller's outstanding debt from them and reduces the
// borrow snapshot accordingly. Overpayment is clamped: only the clamped
// amount moves, the excess is never pulled. The amount actually repaid is
// returned.
func (p *Pool) Repay(borrower crypto.Address, amount *big.Int) (*big.Int, error) {
	return p.repayOnBehalf(borrower, borrower, amount)
}

func (p *Pool) repayOnBehalf(payer, borrower crypto.Address, amount *big.Int) (*big.Int, error) {
	if amount == nil {
		return nil, errNilAmount
	}
	if amount.Sign() <= 0 {
		return nil, ErrAmountNotPositive
	}
	key := borrower.String()
	snapshot := p.snapshots[key]
	if snapshot == nil || snapshot.Principal.Sign() == 0 {
		return nil, ErrNoOutstandingBorrow
	}
	if err := p.AccrueInterest(); err != nil {
		return nil, err
	}

	debt := p.borrowBalance(key)
	pay := cloneBig(minBig(amount, debt))

	if err := p.funds.Transfer(p.asset, payer, p.vault, pay); err != nil {
		return nil, err
	}

	remaining := new(big.Int).Sub(debt, pay)
	if remaining.Sign() == 0 {
		delete(p.snapshots, key)
	} else {
		p.snapshots[key] = &BorrowSnapshot{
			Principal:     remaining,
			InterestIndex: cloneBig(p.borrowIndex),
		}
	}
	p.totalBorrows = clampZero(new(big.Int).Sub(p.totalBorrows, pay))
	return pay, nil
}

// SeizeCollateral reassigns seizeAmount underlying worth of the borrower's
// shares to the liquidator. No underlying moves; the liquidator receives a
// claim on the pool, not cash. Only the manager may call this.
func (p *Pool) SeizeCollateral(caller crypto.Address, borrower, liquidator crypto.Address, seizeAmount *big.Int) error {
	if p.manager == nil || !caller.Equal(p.manager.Address()) {
		return ErrInvalidCaller
	}
	if seizeAmount == nil {
		return errNilAmount
	}
	if seizeAmount.Sign() <= 0 {
		return ErrAmountNotPositive
	}
	if err := p.AccrueInterest(); err != nil {
		return err
	}
	seizedShares := divScaled(seizeAmount, p.ExchangeRate())
	return p.shares.Seize(borrower.String(), liquidator.String(), seizedShares)
}

// GetBorrowBalance returns the account's current debt: the snapshot principal
// scaled by the growth of the borrow index since the snapshot was taken. An
// account without a snapshot owes nothing regardless of the index.
func (p *Pool) GetBorrowBalance(account crypto.Address) *big.Int {
	return p.borrowBalance(account.String())
}

func (p *Pool) borrowBalance(key string) *big.Int {
	snapshot := p.snapshots[key]
	if snapshot == nil || snapshot.Principal == nil || snapshot.Principal.Sign() == 0 {
		return big.NewInt(0)
	}
	debt := new(big.Int).Mul(snapshot.Principal, p.borrowIndex)
	return debt.Quo(debt, snapshot.InterestIndex)
}

// GetAccountBalance returns the account's share balance valued in underlying
// at the current exchange rate.
func (p *Pool) GetAccountBalance(account crypto.Address) *big.Int {
	return mulScaled(p.shares.BalanceOf(account.String()), p.ExchangeRate())
}

// ShareBalance returns the raw share count held by the account.
func (p *Pool) ShareBalance(account crypto.Address) *big.Int {
	return p.shares.BalanceOf(account.String())
}

// TotalShares returns the pool's total share supply.
func (p *Pool) TotalShares() *big.Int {
	return p.shares.TotalSupply()
}
