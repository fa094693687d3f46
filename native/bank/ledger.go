package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"lendvault/crypto"
)

var (
	errInvalidAmount = errors.New("bank: amount must be positive")
	errUnknownAsset  = errors.New("bank: asset not registered")
)

// InsufficientFundsError reports a transfer that exceeds the sender's balance.
// Both quantities are included so callers can surface actionable diagnostics.
type InsufficientFundsError struct {
	Asset     string
	Available *big.Int
	Requested *big.Int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("bank: insufficient %s funds: available %s, requested %s", e.Asset, e.Available, e.Requested)
}

// Ledger tracks fungible asset balances per account. It implements the
// transfer capability consumed by the lending pools: debits and credits are
// atomic per call, and a transfer either moves the full amount or fails
// without touching either balance.
type Ledger struct {
	mu       sync.RWMutex
	assets   map[string]map[string]*big.Int
	registry []string
}

func NewLedger() *Ledger {
	return &Ledger{assets: make(map[string]map[string]*big.Int)}
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

// RegisterAsset makes an asset known to the ledger. Registration is
// idempotent.
func (l *Ledger) RegisterAsset(asset string) {
	symbol := normalizeAsset(asset)
	if symbol == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.assets[symbol]; !ok {
		l.assets[symbol] = make(map[string]*big.Int)
		l.registry = append(l.registry, symbol)
	}
}

// Assets returns the registered asset symbols in registration order.
func (l *Ledger) Assets() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.registry...)
}

// Mint credits freshly issued units to an account. Used to fund test and
// genesis balances; the venue itself never mints underlying assets.
func (l *Ledger) Mint(asset string, account crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	symbol := normalizeAsset(asset)
	l.mu.Lock()
	defer l.mu.Unlock()
	balances, ok := l.assets[symbol]
	if !ok {
		return errUnknownAsset
	}
	key := account.String()
	current := balances[key]
	if current == nil {
		current = big.NewInt(0)
	}
	balances[key] = new(big.Int).Add(current, amount)
	return nil
}

// BalanceOf returns the account's balance for the asset. Unknown accounts
// hold zero.
func (l *Ledger) BalanceOf(asset string, account crypto.Address) *big.Int {
	symbol := normalizeAsset(asset)
	l.mu.RLock()
	defer l.mu.RUnlock()
	balances, ok := l.assets[symbol]
	if !ok {
		return big.NewInt(0)
	}
	balance := balances[account.String()]
	if balance == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(balance)
}

// Transfer moves amount of asset from one account to another. The debit and
// credit happen under a single lock so no partial state is observable.
func (l *Ledger) Transfer(asset string, from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	symbol := normalizeAsset(asset)
	l.mu.Lock()
	defer l.mu.Unlock()
	balances, ok := l.assets[symbol]
	if !ok {
		return errUnknownAsset
	}
	fromKey := from.String()
	fromBalance := balances[fromKey]
	if fromBalance == nil {
		fromBalance = big.NewInt(0)
	}
	if fromBalance.Cmp(amount) < 0 {
		return &InsufficientFundsError{
			Asset:     symbol,
			Available: new(big.Int).Set(fromBalance),
			Requested: new(big.Int).Set(amount),
		}
	}
	toKey := to.String()
	toBalance := balances[toKey]
	if toBalance == nil {
		toBalance = big.NewInt(0)
	}
	balances[fromKey] = new(big.Int).Sub(fromBalance, amount)
	balances[toKey] = new(big.Int).Add(toBalance, amount)
	return nil
}

// SetBalance overwrites an account balance. Restores persisted state; not a
// user-facing operation.
func (l *Ledger) SetBalance(asset string, account crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	symbol := normalizeAsset(asset)
	l.mu.Lock()
	defer l.mu.Unlock()
	balances, ok := l.assets[symbol]
	if !ok {
		return errUnknownAsset
	}
	balances[account.String()] = new(big.Int).Set(amount)
	return nil
}

// Accounts lists the accounts holding a balance of the asset, for state
// persistence walks.
func (l *Ledger) Accounts(asset string) []string {
	symbol := normalizeAsset(asset)
	l.mu.RLock()
	defer l.mu.RUnlock()
	balances, ok := l.assets[symbol]
	if !ok {
		return nil
	}
	accounts := make([]string, 0, len(balances))
	for key, balance := range balances {
		if balance != nil && balance.Sign() > 0 {
			accounts = append(accounts, key)
		}
	}
	return accounts
}
