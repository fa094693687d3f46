package lending

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"lendvault/crypto"
	"lendvault/native/bank"
	"lendvault/storage"
)

var stateKey = []byte("lending/state")

// RLP cannot encode maps, so persisted state flattens every ledger into
// sorted record slices. Sorting keeps the encoding deterministic across
// processes.
type shareRecord struct {
	Account string
	Balance *big.Int
}

type borrowRecord struct {
	Account       string
	Principal     *big.Int
	InterestIndex *big.Int
}

type balanceRecord struct {
	Account string
	Balance *big.Int
}

type poolState struct {
	Asset        string
	TotalBorrows *big.Int
	BorrowIndex  *big.Int
	LastAccrual  uint64
	Shares       []shareRecord
	Borrows      []borrowRecord
	Balances     []balanceRecord
}

type memberRecord struct {
	Account string
	Assets  []string
}

type venueState struct {
	Height               uint64
	CloseFactor          *big.Int
	LiquidationIncentive *big.Int
	Pools                []poolState
	Members              []memberRecord
}

// Store persists the full venue state under a single key. Pools themselves
// are rebuilt from configuration on startup; the store only restores the
// balances, debts, and accumulators that configuration cannot reproduce.
type Store struct {
	db storage.Database
}

func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

// Save snapshots the manager, every pool, and the backing bank balances.
func (s *Store) Save(m *Manager, funds *bank.Ledger, height uint64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("lending: store not configured")
	}
	state := venueState{
		Height:               height,
		CloseFactor:          m.CloseFactor(),
		LiquidationIncentive: m.LiquidationIncentive(),
	}

	for _, pool := range m.Pools() {
		ps := poolState{
			Asset:        pool.asset,
			TotalBorrows: pool.TotalBorrows(),
			BorrowIndex:  pool.BorrowIndex(),
			LastAccrual:  pool.lastAccrualTime,
		}

		holders := pool.shares.Holders()
		sort.Strings(holders)
		for _, holder := range holders {
			ps.Shares = append(ps.Shares, shareRecord{Account: holder, Balance: pool.shares.BalanceOf(holder)})
		}

		borrowers := make([]string, 0, len(pool.snapshots))
		for account := range pool.snapshots {
			borrowers = append(borrowers, account)
		}
		sort.Strings(borrowers)
		for _, account := range borrowers {
			snapshot := pool.snapshots[account]
			ps.Borrows = append(ps.Borrows, borrowRecord{
				Account:       account,
				Principal:     cloneBig(snapshot.Principal),
				InterestIndex: cloneBig(snapshot.InterestIndex),
			})
		}

		accounts := funds.Accounts(pool.asset)
		sort.Strings(accounts)
		for _, account := range accounts {
			addr, err := crypto.DecodeAddress(account)
			if err != nil {
				return fmt.Errorf("lending: persist %s balances: %w", pool.asset, err)
			}
			ps.Balances = append(ps.Balances, balanceRecord{Account: account, Balance: funds.BalanceOf(pool.asset, addr)})
		}

		state.Pools = append(state.Pools, ps)
	}

	members := make([]string, 0, len(m.memberships))
	for account := range m.memberships {
		members = append(members, account)
	}
	sort.Strings(members)
	for _, account := range members {
		addr, err := crypto.DecodeAddress(account)
		if err != nil {
			return fmt.Errorf("lending: persist memberships: %w", err)
		}
		state.Members = append(state.Members, memberRecord{Account: account, Assets: m.MemberAssets(addr)})
	}

	blob, err := rlp.EncodeToBytes(&state)
	if err != nil {
		return fmt.Errorf("lending: encode state: %w", err)
	}
	return s.db.Put(stateKey, blob)
}

// Load restores a previously saved snapshot into the configured manager and
// bank ledger. A missing snapshot is not an error: the venue starts fresh at
// height zero.
func (s *Store) Load(m *Manager, funds *bank.Ledger) (uint64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("lending: store not configured")
	}
	blob, err := s.db.Get(stateKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("lending: read state: %w", err)
	}
	state := new(venueState)
	if err := rlp.DecodeBytes(blob, state); err != nil {
		return 0, fmt.Errorf("lending: decode state: %w", err)
	}

	m.restoreRiskParams(state.CloseFactor, state.LiquidationIncentive)

	for _, ps := range state.Pools {
		pool, err := m.Pool(ps.Asset)
		if err != nil {
			return 0, fmt.Errorf("lending: persisted pool %s is not configured", ps.Asset)
		}
		pool.restoreAccruals(ps.TotalBorrows, ps.BorrowIndex, ps.LastAccrual)
		for _, record := range ps.Shares {
			pool.shares.setBalance(record.Account, record.Balance)
		}
		for _, record := range ps.Borrows {
			pool.restoreSnapshot(record.Account, record.Principal, record.InterestIndex)
		}
		for _, record := range ps.Balances {
			addr, err := crypto.DecodeAddress(record.Account)
			if err != nil {
				return 0, fmt.Errorf("lending: restore %s balances: %w", ps.Asset, err)
			}
			if err := funds.SetBalance(ps.Asset, addr, record.Balance); err != nil {
				return 0, fmt.Errorf("lending: restore %s balances: %w", ps.Asset, err)
			}
		}
	}

	for _, record := range state.Members {
		m.restoreMembership(record.Account, record.Assets)
	}

	m.SetBlockHeight(state.Height)
	return state.Height, nil
}

func (p *Pool) restoreAccruals(totalBorrows, borrowIndex *big.Int, lastAccrual uint64) {
	if p == nil {
		return
	}
	p.totalBorrows = cloneBig(totalBorrows)
	p.borrowIndex = cloneBig(borrowIndex)
	p.lastAccrualTime = lastAccrual
}

func (p *Pool) restoreSnapshot(account string, principal, interestIndex *big.Int) {
	if p == nil || principal == nil || principal.Sign() <= 0 {
		return
	}
	p.snapshots[account] = &BorrowSnapshot{
		Principal:     cloneBig(principal),
		InterestIndex: cloneBig(interestIndex),
	}
}

func (m *Manager) restoreRiskParams(closeFactor, incentive *big.Int) {
	if m == nil {
		return
	}
	if closeFactor != nil && closeFactor.Sign() > 0 {
		m.closeFactor = cloneBig(closeFactor)
	}
	if incentive != nil && incentive.Sign() > 0 {
		m.liquidationIncentive = cloneBig(incentive)
	}
}

func (m *Manager) restoreMembership(account string, assets []string) {
	if m == nil || account == "" {
		return
	}
	for _, asset := range assets {
		m.addMembership(account, asset)
	}
}
