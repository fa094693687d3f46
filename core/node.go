package core

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"lendvault/core/events"
	"lendvault/crypto"
	"lendvault/native/bank"
	"lendvault/native/common"
	"lendvault/native/lending"
	"lendvault/observability"
	"lendvault/storage"
)

// Node is the central controller of the venue. Every mutating operation runs
// under a single mutex, so pool arithmetic never observes a half-applied
// state, and every successful operation is persisted before the node reports
// success to the caller.
type Node struct {
	mu sync.Mutex

	db      storage.Database
	funds   *bank.Ledger
	manager *lending.Manager
	store   *lending.Store
	pauses  *common.Pauses
	emitter events.Emitter
	metrics *observability.VenueMetrics
	logger  *slog.Logger

	height uint64
}

// NewNode builds the venue from its module configuration and restores any
// persisted state from the database.
func NewNode(db storage.Database, cfg lending.ModuleConfig, admin crypto.Address, logger *slog.Logger) (*Node, error) {
	if logger == nil {
		logger = slog.Default()
	}
	funds := bank.NewLedger()
	manager, err := cfg.Build(admin, funds)
	if err != nil {
		return nil, fmt.Errorf("core: build lending module: %w", err)
	}
	pauses := common.NewPauses()
	manager.SetPauses(pauses)

	store := lending.NewStore(db)
	height, err := store.Load(manager, funds)
	if err != nil {
		return nil, fmt.Errorf("core: restore state: %w", err)
	}

	node := &Node{
		db:      db,
		funds:   funds,
		manager: manager,
		store:   store,
		pauses:  pauses,
		emitter: events.NoopEmitter{},
		metrics: observability.Venue(),
		logger:  logger.With("component", "node"),
		height:  height,
	}
	node.logger.Info("venue initialized", "height", height, "pools", len(manager.Pools()))
	return node, nil
}

// SetEmitter installs the downstream event sink. Call before serving traffic.
func (n *Node) SetEmitter(e events.Emitter) {
	if n == nil || e == nil {
		return
	}
	n.mu.Lock()
	n.emitter = e
	n.mu.Unlock()
}

// Pauses exposes the operator pause switches.
func (n *Node) Pauses() *common.Pauses { return n.pauses }

// Manager exposes the liquidity manager for administrative surfaces.
func (n *Node) Manager() *lending.Manager { return n.manager }

// Funds exposes the underlying asset ledger.
func (n *Node) Funds() *bank.Ledger { return n.funds }

// Height returns the current accrual height.
func (n *Node) Height() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.height
}

// AdvanceHeight moves the venue one height forward and accrues interest in
// every pool, so idle pools do not drift behind active ones.
func (n *Node) AdvanceHeight() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	next := n.height + 1
	n.manager.SetBlockHeight(next)
	for _, pool := range n.manager.Pools() {
		if err := pool.AccrueInterest(); err != nil {
			n.manager.SetBlockHeight(n.height)
			return n.height, fmt.Errorf("core: accrue %s: %w", pool.Asset(), err)
		}
	}
	n.height = next
	if err := n.persistLocked(); err != nil {
		return n.height, err
	}
	n.metrics.RecordHeight(n.height)
	n.logger.Debug("height advanced", "height", n.height)
	return n.height, nil
}

// Deposit supplies underlying into a pool on behalf of the caller.
func (n *Node) Deposit(asset string, from crypto.Address, amount *big.Int) (minted *big.Int, err error) {
	defer n.observe("deposit", asset, time.Now(), &err)
	n.mu.Lock()
	defer n.mu.Unlock()

	if err = common.Guard(n.pauses, "lending.deposit"); err != nil {
		return nil, err
	}
	pool, err := n.manager.Pool(asset)
	if err != nil {
		return nil, err
	}
	minted, err = pool.Deposit(from, amount)
	if err != nil {
		return nil, err
	}
	if err = n.persistLocked(); err != nil {
		return nil, err
	}
	n.finishLocked(pool, lending.NewDepositEvent(pool.Asset(), from, amount, minted))
	return minted, nil
}

// Withdraw redeems underlying from a pool.
func (n *Node) Withdraw(asset string, account crypto.Address, amount *big.Int) (err error) {
	defer n.observe("withdraw", asset, time.Now(), &err)
	n.mu.Lock()
	defer n.mu.Unlock()

	if err = common.Guard(n.pauses, "lending.withdraw"); err != nil {
		return err
	}
	pool, err := n.manager.Pool(asset)
	if err != nil {
		return err
	}
	if err = pool.Withdraw(account, amount); err != nil {
		return err
	}
	if err = n.persistLocked(); err != nil {
		return err
	}
	n.finishLocked(pool, lending.NewWithdrawEvent(pool.Asset(), account, amount))
	return nil
}

// Borrow draws underlying from a pool against the caller's cross-pool
// collateral.
func (n *Node) Borrow(asset string, borrower crypto.Address, amount *big.Int) (err error) {
	defer n.observe("borrow", asset, time.Now(), &err)
	n.mu.Lock()
	defer n.mu.Unlock()

	if err = common.Guard(n.pauses, "lending.borrow"); err != nil {
		return err
	}
	pool, err := n.manager.Pool(asset)
	if err != nil {
		return err
	}
	if err = pool.Borrow(borrower, amount); err != nil {
		return err
	}
	if err = n.persistLocked(); err != nil {
		return err
	}
	n.finishLocked(pool, lending.NewBorrowEvent(pool.Asset(), borrower, amount))
	return nil
}

// Repay pays down the caller's debt, clamped to the outstanding balance. The
// amount actually pulled is returned.
func (n *Node) Repay(asset string, borrower crypto.Address, amount *big.Int) (paid *big.Int, err error) {
	defer n.observe("repay", asset, time.Now(), &err)
	n.mu.Lock()
	defer n.mu.Unlock()

	if err = common.Guard(n.pauses, "lending.repay"); err != nil {
		return nil, err
	}
	pool, err := n.manager.Pool(asset)
	if err != nil {
		return nil, err
	}
	paid, err = pool.Repay(borrower, amount)
	if err != nil {
		return nil, err
	}
	if err = n.persistLocked(); err != nil {
		return nil, err
	}
	n.finishLocked(pool, lending.NewRepayEvent(pool.Asset(), borrower, paid))
	return paid, nil
}

// Liquidate closes part of an underwater borrow in exchange for discounted
// collateral shares. The seized underlying value is returned.
func (n *Node) Liquidate(liquidator, borrower crypto.Address, repayAsset, collateralAsset string, repayAmount *big.Int) (seized *big.Int, err error) {
	defer n.observe("liquidate", repayAsset, time.Now(), &err)
	n.mu.Lock()
	defer n.mu.Unlock()

	seized, err = n.manager.LiquidateBorrow(liquidator, borrower, repayAsset, collateralAsset, repayAmount)
	if err != nil {
		return nil, err
	}
	if err = n.persistLocked(); err != nil {
		return nil, err
	}
	repayPool, poolErr := n.manager.Pool(repayAsset)
	if poolErr == nil {
		n.recordPoolLocked(repayPool)
	}
	collateralPool, poolErr := n.manager.Pool(collateralAsset)
	if poolErr == nil {
		n.recordPoolLocked(collateralPool)
	}
	n.emitLocked(lending.NewLiquidateEvent(repayAsset, collateralAsset, liquidator, borrower, repayAmount, seized))
	return seized, nil
}

// Credit mints underlying to an account. Restricted to the genesis and
// operator flows; the venue itself never creates assets during operation.
func (n *Node) Credit(asset string, account crypto.Address, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.funds.Mint(asset, account, amount); err != nil {
		return err
	}
	return n.persistLocked()
}

// MarketSnapshot is a read-only view of one pool.
type MarketSnapshot struct {
	Asset            string
	Cash             *big.Int
	TotalBorrows     *big.Int
	TotalShares      *big.Int
	BorrowIndex      *big.Int
	ExchangeRate     *big.Int
	UtilizationRate  *big.Int
	BorrowRate       *big.Int
	SupplyRate       *big.Int
	CollateralFactor *big.Int
}

// Position is a read-only view of one account within one pool.
type Position struct {
	Asset         string
	Shares        *big.Int
	SupplyBalance *big.Int
	BorrowBalance *big.Int
}

// Market returns the snapshot for a single pool.
func (n *Node) Market(asset string) (MarketSnapshot, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	pool, err := n.manager.Pool(asset)
	if err != nil {
		return MarketSnapshot{}, err
	}
	return n.snapshotLocked(pool)
}

// Markets returns snapshots for every pool, ordered by asset.
func (n *Node) Markets() ([]MarketSnapshot, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	pools := n.manager.Pools()
	snapshots := make([]MarketSnapshot, 0, len(pools))
	for _, pool := range pools {
		snapshot, err := n.snapshotLocked(pool)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

// Position returns the account's supply and borrow standing in one pool.
func (n *Node) Position(asset string, account crypto.Address) (Position, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	pool, err := n.manager.Pool(asset)
	if err != nil {
		return Position{}, err
	}
	return Position{
		Asset:         pool.Asset(),
		Shares:        pool.ShareBalance(account),
		SupplyBalance: pool.GetAccountBalance(account),
		BorrowBalance: pool.GetBorrowBalance(account),
	}, nil
}

// AccountLiquidity reports the account's spare borrowing power and shortfall
// in USD.
func (n *Node) AccountLiquidity(account crypto.Address) (*big.Int, *big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.manager.AccountLiquidity(account)
}

func (n *Node) snapshotLocked(pool *lending.Pool) (MarketSnapshot, error) {
	cash := pool.Cash()
	borrows := pool.TotalBorrows()
	model := pool.Rates()
	borrowRate, err := model.BorrowRate(cash, borrows)
	if err != nil {
		return MarketSnapshot{}, err
	}
	supplyRate, err := model.SupplyRate(cash, borrows)
	if err != nil {
		return MarketSnapshot{}, err
	}
	return MarketSnapshot{
		Asset:            pool.Asset(),
		Cash:             cash,
		TotalBorrows:     borrows,
		TotalShares:      pool.TotalShares(),
		BorrowIndex:      pool.BorrowIndex(),
		ExchangeRate:     pool.ExchangeRate(),
		UtilizationRate:  model.UtilizationRate(cash, borrows),
		BorrowRate:       borrowRate,
		SupplyRate:       supplyRate,
		CollateralFactor: pool.CollateralFactor(),
	}, nil
}

func (n *Node) persistLocked() error {
	if err := n.store.Save(n.manager, n.funds, n.height); err != nil {
		n.logger.Error("state persistence failed", "error", err)
		return err
	}
	return nil
}

func (n *Node) finishLocked(pool *lending.Pool, evt events.Event) {
	n.recordPoolLocked(pool)
	n.emitLocked(evt)
}

func (n *Node) recordPoolLocked(pool *lending.Pool) {
	n.metrics.RecordPool(pool.Asset(), pool.Cash(), pool.TotalBorrows())
}

func (n *Node) emitLocked(evt events.Event) {
	evt.Height = n.height
	n.emitter.Emit(evt)
}

func (n *Node) observe(operation, asset string, start time.Time, err *error) {
	n.metrics.ObserveOperation(operation, asset, time.Since(start), *err)
	if *err != nil {
		n.logger.Warn("operation rejected", "operation", operation, "asset", asset, "error", *err)
	}
}
