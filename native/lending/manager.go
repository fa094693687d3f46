package lending

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"lendvault/crypto"
	"lendvault/native/common"
)

// Values above this are rejected when setting the liquidation incentive. A
// 1.5x bonus is already punitive; anything larger drains borrowers faster
// than it protects suppliers.
var maxLiquidationIncentive = new(big.Int).Mul(big.NewInt(15), new(big.Int).Quo(oneScale, big.NewInt(10)))

// Manager aggregates liquidity and debt across every registered pool. It is
// the only component that can value an account's whole position: pools ask it
// before releasing funds, and liquidators go through it to close underwater
// positions.
type Manager struct {
	address crypto.Address
	admin   crypto.Address

	pools map[string]*Pool
	// memberships holds each account's pools in the order they were entered,
	// deduplicated on append.
	memberships map[string][]string
	feeds       map[string]PriceFeed

	closeFactor          *big.Int
	liquidationIncentive *big.Int

	pauses common.PauseView
}

// NewManager constructs an empty manager. The admin address gates parameter
// changes; the manager's own module address gates collateral seizure.
func NewManager(admin crypto.Address) *Manager {
	return &Manager{
		address:              crypto.ModuleAddress("lending/manager"),
		admin:                admin,
		pools:                make(map[string]*Pool),
		memberships:          make(map[string][]string),
		feeds:                make(map[string]PriceFeed),
		closeFactor:          new(big.Int).Quo(oneScale, big.NewInt(2)),
		liquidationIncentive: new(big.Int).Add(oneScale, new(big.Int).Quo(oneScale, big.NewInt(10))),
	}
}

// Address returns the manager's module address.
func (m *Manager) Address() crypto.Address { return m.address }

// CloseFactor returns the 1e18-scaled fraction of a borrow that one
// liquidation may repay.
func (m *Manager) CloseFactor() *big.Int { return cloneBig(m.closeFactor) }

// LiquidationIncentive returns the 1e18-scaled collateral multiplier granted
// to liquidators.
func (m *Manager) LiquidationIncentive() *big.Int { return cloneBig(m.liquidationIncentive) }

// SetPauses installs the pause view consulted before liquidations.
func (m *Manager) SetPauses(p common.PauseView) {
	if m == nil {
		return
	}
	m.pauses = p
}

// SetBlockHeight propagates the current height to every pool.
func (m *Manager) SetBlockHeight(height uint64) {
	if m == nil {
		return
	}
	for _, pool := range m.pools {
		pool.SetBlockHeight(height)
	}
}

// AddPool registers a pool under its asset symbol and wires the pool back to
// this manager for liquidity checks.
func (m *Manager) AddPool(pool *Pool) error {
	if pool == nil {
		return fmt.Errorf("lending: nil pool")
	}
	symbol := strings.ToUpper(strings.TrimSpace(pool.asset))
	if symbol == "" {
		return fmt.Errorf("lending: pool asset must not be empty")
	}
	if _, exists := m.pools[symbol]; exists {
		return ErrPoolAlreadyExists
	}
	pool.manager = m
	m.pools[symbol] = pool
	return nil
}

// Pool resolves a pool by asset symbol.
func (m *Manager) Pool(asset string) (*Pool, error) {
	pool := m.pools[strings.ToUpper(strings.TrimSpace(asset))]
	if pool == nil {
		return nil, ErrPoolNotFound
	}
	return pool, nil
}

// Pools returns every registered pool ordered by asset symbol.
func (m *Manager) Pools() []*Pool {
	symbols := make([]string, 0, len(m.pools))
	for symbol := range m.pools {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	pools := make([]*Pool, 0, len(symbols))
	for _, symbol := range symbols {
		pools = append(pools, m.pools[symbol])
	}
	return pools
}

// BindPriceFeed attaches a price feed to an asset symbol. Pools without a
// bound feed cannot take part in liquidity calculations.
func (m *Manager) BindPriceFeed(asset string, feed PriceFeed) {
	if m == nil || feed == nil {
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(asset))
	if symbol == "" {
		return
	}
	m.feeds[symbol] = feed
}

// RegisterPool records that an account participates in a pool. Only the pool
// itself may register its depositors: callers must present the pool's vault
// address as the capability.
func (m *Manager) RegisterPool(account crypto.Address, pool *Pool, caller crypto.Address) error {
	if pool == nil {
		return ErrPoolNotFound
	}
	if !caller.Equal(pool.vault) {
		return ErrInvalidCaller
	}
	symbol := strings.ToUpper(strings.TrimSpace(pool.asset))
	if m.pools[symbol] != pool {
		return ErrPoolNotFound
	}
	m.addMembership(account.String(), symbol)
	return nil
}

// addMembership appends the pool to the account's set unless already present.
func (m *Manager) addMembership(account, symbol string) {
	for _, existing := range m.memberships[account] {
		if existing == symbol {
			return
		}
	}
	m.memberships[account] = append(m.memberships[account], symbol)
}

// MemberAssets lists the pools an account participates in, in the order the
// account entered them.
func (m *Manager) MemberAssets(account crypto.Address) []string {
	return append([]string{}, m.memberships[account.String()]...)
}

// SetCloseFactor updates the per-liquidation repay cap. Admin only. The value
// is a 1e18-scaled fraction and must sit in (0, 1].
func (m *Manager) SetCloseFactor(caller crypto.Address, value *big.Int) error {
	if !caller.Equal(m.admin) {
		return ErrInvalidCaller
	}
	if value == nil || value.Sign() <= 0 || value.Cmp(oneScale) > 0 {
		return ErrCloseFactorOutOfBounds
	}
	m.closeFactor = cloneBig(value)
	return nil
}

// SetLiquidationIncentive updates the collateral bonus multiplier. Admin
// only. The value must be at least 1e18 (no penalty to the liquidator) and at
// most 1.5e18.
func (m *Manager) SetLiquidationIncentive(caller crypto.Address, value *big.Int) error {
	if !caller.Equal(m.admin) {
		return ErrInvalidCaller
	}
	if value == nil || value.Cmp(oneScale) < 0 || value.Cmp(maxLiquidationIncentive) > 0 {
		return ErrLiquidationIncentiveOutOfBounds
	}
	m.liquidationIncentive = cloneBig(value)
	return nil
}

// price resolves a positive USD price for the asset or fails loudly. A
// missing feed and a non-positive quote are distinct failures so operators
// can tell a wiring gap from a feed malfunction.
func (m *Manager) price(asset string) (*big.Int, error) {
	symbol := strings.ToUpper(strings.TrimSpace(asset))
	feed := m.feeds[symbol]
	if feed == nil {
		return nil, fmt.Errorf("%w: %s", ErrPriceFeedMissing, symbol)
	}
	quote, err := feed.LatestPrice(symbol)
	if err != nil {
		return nil, fmt.Errorf("lending: price feed %s: %w", symbol, err)
	}
	if quote.Price == nil || quote.Price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOraclePrice, symbol)
	}
	return quote.Price, nil
}

// memberPools returns the account's pools in membership order, including the
// modified pool even when the account has not entered it yet.
func (m *Manager) memberPools(account crypto.Address, modified *Pool) []*Pool {
	recorded := m.memberships[account.String()]
	symbols := append(make([]string, 0, len(recorded)+1), recorded...)
	if modified != nil {
		symbol := strings.ToUpper(strings.TrimSpace(modified.asset))
		found := false
		for _, existing := range symbols {
			if existing == symbol {
				found = true
				break
			}
		}
		if !found {
			symbols = append(symbols, symbol)
		}
	}
	pools := make([]*Pool, 0, len(symbols))
	for _, symbol := range symbols {
		if pool := m.pools[symbol]; pool != nil {
			pools = append(pools, pool)
		}
	}
	return pools
}

// CalculateEffectiveCollateralValue values the account's deposits across all
// member pools in USD, weighting each pool by its collateral factor.
func (m *Manager) CalculateEffectiveCollateralValue(account crypto.Address) (*big.Int, error) {
	total := big.NewInt(0)
	for _, pool := range m.memberPools(account, nil) {
		price, err := m.price(pool.asset)
		if err != nil {
			return nil, err
		}
		balance := pool.GetAccountBalance(account)
		weighted := mulScaled(balance, pool.collateralFactor)
		total = new(big.Int).Add(total, mulScaled(weighted, price))
	}
	return total, nil
}

// AccountLiquidity returns the account's spare borrowing power and shortfall
// in USD. At most one of the two is positive.
func (m *Manager) AccountLiquidity(account crypto.Address) (*big.Int, *big.Int, error) {
	return m.HypotheticalAccountLiquidity(account, nil, nil, nil)
}

// HypotheticalAccountLiquidity values the account's position as if
// redeemAmount of underlying left the modified pool and borrowAmount more
// were borrowed from it. Pools without the account's participation contribute
// nothing. The calculation mutates no state, so a rejected operation leaves
// the venue exactly as it found it.
func (m *Manager) HypotheticalAccountLiquidity(account crypto.Address, modified *Pool, redeemAmount, borrowAmount *big.Int) (*big.Int, *big.Int, error) {
	collateral := big.NewInt(0)
	borrows := big.NewInt(0)

	for _, pool := range m.memberPools(account, modified) {
		price, err := m.price(pool.asset)
		if err != nil {
			return nil, nil, err
		}

		balance := pool.GetAccountBalance(account)
		debt := pool.GetBorrowBalance(account)
		if pool == modified {
			if redeemAmount != nil {
				balance = clampZero(new(big.Int).Sub(balance, redeemAmount))
			}
			if borrowAmount != nil {
				debt = new(big.Int).Add(debt, borrowAmount)
			}
		}

		weighted := mulScaled(balance, pool.collateralFactor)
		collateral = new(big.Int).Add(collateral, mulScaled(weighted, price))
		borrows = new(big.Int).Add(borrows, mulScaled(debt, price))
	}

	liquidity := clampZero(new(big.Int).Sub(collateral, borrows))
	shortfall := clampZero(new(big.Int).Sub(borrows, collateral))
	return liquidity, shortfall, nil
}

// LiquidateBorrow lets a third party repay part of an underwater borrower's
// debt in exchange for a discounted claim on the borrower's collateral. The
// repay leg pulls from the liquidator; the seize leg reassigns shares in the
// collateral pool without moving underlying.
func (m *Manager) LiquidateBorrow(liquidator, borrower crypto.Address, repayAsset, collateralAsset string, repayAmount *big.Int) (*big.Int, error) {
	if err := common.Guard(m.pauses, "lending.liquidate"); err != nil {
		return nil, err
	}
	if repayAmount == nil {
		return nil, errNilAmount
	}
	if repayAmount.Sign() <= 0 {
		return nil, ErrAmountNotPositive
	}
	if liquidator.Equal(borrower) {
		return nil, ErrInvalidCaller
	}

	repayPool, err := m.Pool(repayAsset)
	if err != nil {
		return nil, err
	}
	collateralPool, err := m.Pool(collateralAsset)
	if err != nil {
		return nil, err
	}

	_, shortfall, err := m.AccountLiquidity(borrower)
	if err != nil {
		return nil, err
	}
	if shortfall.Sign() == 0 {
		return nil, ErrBorrowerHealthy
	}

	debt := repayPool.GetBorrowBalance(borrower)
	if debt.Sign() == 0 {
		return nil, ErrNoOutstandingBorrow
	}
	maxRepay := mulScaled(debt, m.closeFactor)
	if repayAmount.Cmp(maxRepay) > 0 {
		return nil, &RepayExceedsCloseFactorError{MaxRepay: maxRepay, Requested: cloneBig(repayAmount)}
	}

	repayPrice, err := m.price(repayPool.asset)
	if err != nil {
		return nil, err
	}
	collateralPrice, err := m.price(collateralPool.asset)
	if err != nil {
		return nil, err
	}

	// Seized collateral value = repaid value * incentive, converted back
	// into collateral units at the collateral price.
	repaidValue := mulScaled(repayAmount, repayPrice)
	seizeValue := mulScaled(repaidValue, m.liquidationIncentive)
	seizeAmount := divScaled(seizeValue, collateralPrice)

	held := collateralPool.GetAccountBalance(borrower)
	if seizeAmount.Cmp(held) > 0 {
		return nil, &InsufficientBalanceError{Available: held, Requested: seizeAmount}
	}

	if _, err := repayPool.repayOnBehalf(liquidator, borrower, repayAmount); err != nil {
		return nil, err
	}
	if err := collateralPool.SeizeCollateral(m.address, borrower, liquidator, seizeAmount); err != nil {
		return nil, err
	}

	m.addMembership(liquidator.String(), strings.ToUpper(collateralPool.asset))

	return seizeAmount, nil
}
