package book

import "spx/pkg/trader"

// Side is the direction of an order.
type Side int8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

// Order is one live order. While resting it is physically linked into
// exactly one ProductBook, which owns it; the Trader pointer is a non-owning
// back-reference. Once unlinked an order is never referenced by the book
// again.
type Order struct {
	Trader  *trader.Trader
	ID      int // trader-assigned id, unique per trader only
	Product string
	Side    Side
	Qty     int64
	Price   int64

	prev, next *Order
}
