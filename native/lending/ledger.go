package lending

import "math/big"

// ShareLedger tracks proportional claims on one pool's liquidity. Only the
// owning pool mutates it: mint on deposit, burn on withdrawal, seize during
// liquidation. The conservation invariant is that totalSupply always equals
// the sum of all balances.
type ShareLedger struct {
	balances    map[string]*big.Int
	totalSupply *big.Int
}

func NewShareLedger() *ShareLedger {
	return &ShareLedger{
		balances:    make(map[string]*big.Int),
		totalSupply: big.NewInt(0),
	}
}

// BalanceOf returns the account's share balance; unknown accounts hold zero.
func (l *ShareLedger) BalanceOf(account string) *big.Int {
	balance := l.balances[account]
	if balance == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(balance)
}

// TotalSupply returns the aggregate share count across all accounts.
func (l *ShareLedger) TotalSupply() *big.Int {
	return new(big.Int).Set(l.totalSupply)
}

// Mint credits newly issued shares to an account.
func (l *ShareLedger) Mint(account string, amount *big.Int) error {
	if amount == nil {
		return errNilAmount
	}
	if amount.Sign() <= 0 {
		return ErrAmountNotPositive
	}
	current := l.balances[account]
	if current == nil {
		current = big.NewInt(0)
	}
	l.balances[account] = new(big.Int).Add(current, amount)
	l.totalSupply = new(big.Int).Add(l.totalSupply, amount)
	return nil
}

// Burn destroys shares held by an account.
func (l *ShareLedger) Burn(account string, amount *big.Int) error {
	if amount == nil {
		return errNilAmount
	}
	if amount.Sign() <= 0 {
		return ErrAmountNotPositive
	}
	current := l.balances[account]
	if current == nil {
		current = big.NewInt(0)
	}
	if current.Cmp(amount) < 0 {
		return &InsufficientBalanceError{
			Available: new(big.Int).Set(current),
			Requested: new(big.Int).Set(amount),
		}
	}
	remaining := new(big.Int).Sub(current, amount)
	if remaining.Sign() == 0 {
		delete(l.balances, account)
	} else {
		l.balances[account] = remaining
	}
	l.totalSupply = new(big.Int).Sub(l.totalSupply, amount)
	return nil
}

// Transfer moves shares between accounts without changing totalSupply.
func (l *ShareLedger) Transfer(from, to string, amount *big.Int) error {
	if amount == nil {
		return errNilAmount
	}
	if amount.Sign() <= 0 {
		return ErrAmountNotPositive
	}
	fromBalance := l.balances[from]
	if fromBalance == nil {
		fromBalance = big.NewInt(0)
	}
	if fromBalance.Cmp(amount) < 0 {
		return &InsufficientBalanceError{
			Available: new(big.Int).Set(fromBalance),
			Requested: new(big.Int).Set(amount),
		}
	}
	toBalance := l.balances[to]
	if toBalance == nil {
		toBalance = big.NewInt(0)
	}
	remaining := new(big.Int).Sub(fromBalance, amount)
	if remaining.Sign() == 0 {
		delete(l.balances, from)
	} else {
		l.balances[from] = remaining
	}
	l.balances[to] = new(big.Int).Add(toBalance, amount)
	return nil
}

// Seize forcibly reassigns shares from a borrower to a liquidator. The share
// count is preserved; only the claim holder changes.
func (l *ShareLedger) Seize(from, to string, amount *big.Int) error {
	return l.Transfer(from, to, amount)
}

// Holders lists accounts with a nonzero balance, for state persistence.
func (l *ShareLedger) Holders() []string {
	holders := make([]string, 0, len(l.balances))
	for account, balance := range l.balances {
		if balance != nil && balance.Sign() > 0 {
			holders = append(holders, account)
		}
	}
	return holders
}

// setBalance restores a persisted balance, adjusting totalSupply to keep the
// conservation invariant.
func (l *ShareLedger) setBalance(account string, amount *big.Int) {
	if amount == nil || amount.Sign() < 0 {
		return
	}
	current := l.balances[account]
	if current == nil {
		current = big.NewInt(0)
	}
	l.totalSupply = new(big.Int).Sub(l.totalSupply, current)
	if amount.Sign() == 0 {
		delete(l.balances, account)
	} else {
		l.balances[account] = new(big.Int).Set(amount)
	}
	l.totalSupply = new(big.Int).Add(l.totalSupply, amount)
}
