package models

import "time"

// PricePoint is one sample of a pair's price history.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

type BookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook is a depth snapshot. Bids are sorted descending by price,
// asks ascending, as delivered by the ledger client.
type OrderBook struct {
	Bids []BookLevel `json:"bids"`
	Asks []BookLevel `json:"asks"`
}

func (ob *OrderBook) IsEmpty() bool {
	return len(ob.Bids) == 0 && len(ob.Asks) == 0
}

// NotionalDepthWithin sums price*size over both sides for levels whose price
// falls within ±pct of mid.
func (ob *OrderBook) NotionalDepthWithin(mid float64, pct float64) float64 {
	lowerBound := mid * (1 - pct)
	upperBound := mid * (1 + pct)

	depth := 0.0
	for _, bid := range ob.Bids {
		if bid.Price >= lowerBound {
			depth += bid.Price * bid.Size
		}
	}
	for _, ask := range ob.Asks {
		if ask.Price <= upperBound {
			depth += ask.Price * ask.Size
		}
	}
	return depth
}

// VolatilitySample is a derived annualized-24h volatility estimate.
type VolatilitySample struct {
	Pair       string    `json:"pair"`
	Value      float64   `json:"value"`
	ComputedAt time.Time `json:"computedAt"`
}

// Fill is an observed execution attributed to the vault account.
type Fill struct {
	Pair    string    `json:"pair"`
	Side    OrderSide `json:"side"`
	Size    float64   `json:"size"`
	Price   float64   `json:"price"`
	IsMaker bool      `json:"isMaker"`
	Time    time.Time `json:"time"`
}

func (f *Fill) Notional() float64 {
	return f.Size * f.Price
}
