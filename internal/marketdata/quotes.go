package marketdata

import (
	"fmt"
	"sync"
	"time"

	"github.com/your-org/crypto-rebalancer/internal/exchange/poloniex"
)

// Quote is the best bid/ask for one market.
type Quote struct {
	Bid    float64
	Ask    float64
	Frozen bool
	Time   time.Time
}

// QuoteCache holds the latest streamed quote per market. Reads falling
// outside maxAge miss, forcing the caller back to REST.
type QuoteCache struct {
	mu     sync.RWMutex
	quotes map[string]Quote
	maxAge time.Duration
}

// NewQuoteCache creates a cache whose entries expire after maxAge.
func NewQuoteCache(maxAge time.Duration) *QuoteCache {
	return &QuoteCache{quotes: make(map[string]Quote), maxAge: maxAge}
}

// Apply stores a ticker update. Shaped as a poloniex.TickerHandler target.
func (c *QuoteCache) Apply(u poloniex.TickerUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[u.Pair] = Quote{Bid: u.Bid, Ask: u.Ask, Frozen: u.Frozen, Time: u.Time}
}

// Quote returns the cached quote for pair if present and fresh.
func (c *QuoteCache) Quote(pair string) (Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[pair]
	if !ok || q.Bid <= 0 || q.Ask <= 0 {
		return Quote{}, false
	}
	if c.maxAge > 0 && time.Since(q.Time) > c.maxAge {
		return Quote{}, false
	}
	return q, true
}

// TickerAPI is the REST fallback the quote service prices from.
type TickerAPI interface {
	Ticker() (map[string]poloniex.TickerEntry, error)
}

// QuoteService serves best quotes from the stream cache when available and
// fresh, falling back to the REST ticker otherwise. A nil cache is a pure
// REST quoter.
type QuoteService struct {
	cache *QuoteCache
	api   TickerAPI
}

// NewQuoteService creates a quote service. cache may be nil.
func NewQuoteService(cache *QuoteCache, api TickerAPI) *QuoteService {
	return &QuoteService{cache: cache, api: api}
}

// BestQuote returns the best bid/ask and frozen flag for a market.
func (s *QuoteService) BestQuote(pair string) (bid, ask float64, frozen bool, err error) {
	if s.cache != nil {
		if q, ok := s.cache.Quote(pair); ok {
			return q.Bid, q.Ask, q.Frozen, nil
		}
	}
	ticker, err := s.api.Ticker()
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to fetch quote for %s: %w", pair, err)
	}
	entry, ok := ticker[pair]
	if !ok {
		return 0, 0, false, fmt.Errorf("market %s does not exist", pair)
	}
	return entry.HighestBid.InexactFloat64(), entry.LowestAsk.InexactFloat64(), entry.Frozen(), nil
}
