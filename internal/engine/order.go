package engine

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidOrder marks an order violating the buy/sell amount exclusivity
// or positivity invariant. Raised at construction, before any network call.
var ErrInvalidOrder = errors.New("invalid order")

// Order is one atomic exchange instruction: exactly one of BuyAmount and
// SellAmount is set, strictly positive, denominated in the corresponding
// asset's own units.
type Order struct {
	BuyAsset   string
	SellAsset  string
	BuyAmount  *float64
	SellAmount *float64
}

// Validate enforces the order invariants.
func (o Order) Validate() error {
	if o.BuyAsset == o.SellAsset {
		return fmt.Errorf("%w: buy and sell asset are both %s", ErrInvalidOrder, o.BuyAsset)
	}
	if (o.BuyAmount == nil) == (o.SellAmount == nil) {
		return fmt.Errorf("%w: exactly one of buy/sell amount must be set (%s/%s)",
			ErrInvalidOrder, o.BuyAsset, o.SellAsset)
	}
	if o.BuyAmount != nil && *o.BuyAmount <= 0 {
		return fmt.Errorf("%w: buy amount %v is not positive", ErrInvalidOrder, *o.BuyAmount)
	}
	if o.SellAmount != nil && *o.SellAmount <= 0 {
		return fmt.Errorf("%w: sell amount %v is not positive", ErrInvalidOrder, *o.SellAmount)
	}
	return nil
}

// IsSell reports whether the order disposes of a non-home asset. Sells are
// executed before buys so sale proceeds fund the purchases.
func (o Order) IsSell() bool { return o.SellAmount != nil }

// Asset returns the non-home asset the order trades.
func (o Order) Asset(home string) string {
	if o.BuyAsset != home {
		return o.BuyAsset
	}
	return o.SellAsset
}

// String describes the order for logs.
func (o Order) String() string {
	if o.BuyAmount != nil {
		return fmt.Sprintf("buy %v %s for %s", *o.BuyAmount, o.BuyAsset, o.SellAsset)
	}
	return fmt.Sprintf("sell %v %s for %s", *o.SellAmount, o.SellAsset, o.BuyAsset)
}

// SplitTrades breaks a signed trade vector in local units into atomic
// orders against the home currency: positive amounts buy the asset,
// negative amounts sell it, zeros are skipped. Sells come first, each
// group sorted by asset for deterministic execution.
func SplitTrades(trades map[string]float64, home string) []Order {
	assets := make([]string, 0, len(trades))
	for asset := range trades {
		if asset != home {
			assets = append(assets, asset)
		}
	}
	sort.Strings(assets)

	var sells, buys []Order
	for _, asset := range assets {
		amount := trades[asset]
		switch {
		case amount > 0:
			a := amount
			buys = append(buys, Order{BuyAsset: asset, SellAsset: home, BuyAmount: &a})
		case amount < 0:
			a := -amount
			sells = append(sells, Order{BuyAsset: home, SellAsset: asset, SellAmount: &a})
		}
	}
	return append(sells, buys...)
}
