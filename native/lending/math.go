package lending

import "math/big"

var (
	// oneScale is the fixed-point unit: every rate, factor and exchange rate
	// in this package is an unsigned integer scaled by 1e18.
	oneScale = mustBigInt("1000000000000000000")
	// doubleScale is the denominator for products of two 1e18-scaled values.
	doubleScale = mustBigInt("1000000000000000000000000000000000000")
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// mulScaled multiplies two 1e18-scaled values, keeping the 1e18 scale.
func mulScaled(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, oneScale)
}

// divScaled divides a by b where both carry the same scale, producing a
// 1e18-scaled quotient. A zero divisor yields zero rather than panicking;
// callers guard the cases where zero is meaningful.
func divScaled(a, b *big.Int) *big.Int {
	if a == nil || b == nil || b.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(a, oneScale)
	return scaled.Quo(scaled, b)
}

func clampZero(x *big.Int) *big.Int {
	if x == nil || x.Sign() < 0 {
		return big.NewInt(0)
	}
	return x
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

func cloneBig(x *big.Int) *big.Int {
	if x == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(x)
}
