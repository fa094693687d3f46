package lending

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
)

// PriceQuote carries a USD price for one unit of an asset along with the
// timestamp reported by the upstream feed and the feed identifier. The price
// is a signed 1e18-scaled integer; consumers must reject non-positive values.
type PriceQuote struct {
	Price     *big.Int
	Timestamp time.Time
	Source    string
}

// Clone returns a deep copy of the quote to prevent accidental mutation.
func (q PriceQuote) Clone() PriceQuote {
	clone := PriceQuote{Timestamp: q.Timestamp, Source: q.Source}
	if q.Price != nil {
		clone.Price = new(big.Int).Set(q.Price)
	}
	return clone
}

// PriceFeed resolves the latest USD price for an underlying asset.
type PriceFeed interface {
	LatestPrice(asset string) (PriceQuote, error)
}

// ErrNoFreshQuote indicates no feed produced a quote within the configured
// freshness window.
var ErrNoFreshQuote = errors.New("lending: no fresh price quote available")

// ManualFeed is an in-memory feed used in tests and for operator overrides
// during oracle incidents.
type ManualFeed struct {
	mu     sync.RWMutex
	quotes map[string]PriceQuote
}

func NewManualFeed() *ManualFeed {
	return &ManualFeed{quotes: make(map[string]PriceQuote)}
}

// Set records a price for the asset. Non-positive prices are stored as given;
// rejection happens at the consumer so misbehaving feeds are observable.
func (f *ManualFeed) Set(asset string, price *big.Int, ts time.Time) {
	if f == nil || price == nil {
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(asset))
	if symbol == "" {
		return
	}
	f.mu.Lock()
	f.quotes[symbol] = PriceQuote{Price: new(big.Int).Set(price), Timestamp: ts, Source: "manual"}
	f.mu.Unlock()
}

func (f *ManualFeed) LatestPrice(asset string) (PriceQuote, error) {
	if f == nil {
		return PriceQuote{}, fmt.Errorf("manual feed not configured")
	}
	symbol := strings.ToUpper(strings.TrimSpace(asset))
	f.mu.RLock()
	stored, ok := f.quotes[symbol]
	f.mu.RUnlock()
	if !ok {
		return PriceQuote{}, fmt.Errorf("manual feed: no quote for %s", asset)
	}
	return stored.Clone(), nil
}

// FeedAggregator consults registered feeds in priority order until one yields
// a quote inside the freshness window. Stale quotes are skipped, never
// served.
type FeedAggregator struct {
	mu       sync.RWMutex
	priority []string
	feeds    map[string]PriceFeed
	maxAge   time.Duration
	now      func() time.Time
}

func NewFeedAggregator(priority []string, maxAge time.Duration) *FeedAggregator {
	return &FeedAggregator{
		priority: append([]string{}, priority...),
		feeds:    make(map[string]PriceFeed),
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// Register adds or replaces a feed under the supplied identifier. Unknown
// identifiers are appended to the priority order.
func (a *FeedAggregator) Register(name string, feed PriceFeed) {
	if a == nil {
		return
	}
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.feeds[trimmed] = feed
	for _, entry := range a.priority {
		if entry == trimmed {
			return
		}
	}
	a.priority = append(a.priority, trimmed)
}

func (a *FeedAggregator) LatestPrice(asset string) (PriceQuote, error) {
	if a == nil {
		return PriceQuote{}, fmt.Errorf("feed aggregator not configured")
	}
	a.mu.RLock()
	priority := append([]string{}, a.priority...)
	maxAge := a.maxAge
	nowFn := a.now
	a.mu.RUnlock()

	cutoff := time.Time{}
	if maxAge > 0 {
		cutoff = nowFn().Add(-maxAge)
	}

	var lastErr error
	for _, name := range priority {
		a.mu.RLock()
		feed := a.feeds[name]
		a.mu.RUnlock()
		if feed == nil {
			continue
		}
		quote, err := feed.LatestPrice(asset)
		if err != nil {
			lastErr = err
			continue
		}
		if maxAge > 0 && quote.Timestamp.Before(cutoff) {
			lastErr = ErrNoFreshQuote
			continue
		}
		result := quote.Clone()
		if strings.TrimSpace(result.Source) == "" {
			result.Source = name
		}
		return result, nil
	}
	if lastErr == nil {
		lastErr = ErrNoFreshQuote
	}
	return PriceQuote{}, lastErr
}
