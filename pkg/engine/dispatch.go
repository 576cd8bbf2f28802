package engine

import (
	"spx/pkg/book"
	"spx/pkg/trader"
	"spx/pkg/wire"
)

// Feed receives observer-facing events (order flow, fills, session state).
// Publishing is fire-and-forget; a nil Feed disables it.
type Feed interface {
	Publish(v any)
}

// Journal records every fill for audit. A nil Journal disables it.
type Journal interface {
	RecordFill(f book.Fill) error
}

// marketUpdate mirrors the MARKET broadcast for feed observers.
type marketUpdate struct {
	Type    string `json:"type"`
	Side    string `json:"side"`
	Product string `json:"product"`
	Qty     int64  `json:"qty"`
	Price   int64  `json:"price"`
}

type fillUpdate struct {
	Type     string `json:"type"`
	Product  string `json:"product"`
	Taker    int    `json:"taker"`
	Maker    int    `json:"maker"`
	Qty      int64  `json:"qty"`
	Price    int64  `json:"price"`
	Notional int64  `json:"notional"`
	Fee      int64  `json:"fee"`
}

type sessionUpdate struct {
	Type   string `json:"type"`
	Trader int    `json:"trader"`
	State  string `json:"state"`
}

// sendTo delivers a message on the trader's dedicated outbound channel. A
// dead trader is never written to; the channel write itself is the trader's
// wake-up signal.
func (e *Engine) sendTo(t *trader.Trader, msg []byte) {
	if !t.Alive {
		return
	}
	if s, ok := e.sessions[t.ID]; ok {
		s.Send(msg)
	}
}

// broadcastMarket sends a MARKET update to every live trader except the
// originator, and mirrors it to the feed.
func (e *Engine) broadcastMarket(except *trader.Trader, side book.Side, product string, qty, price int64) {
	msg := wire.Market(side, product, qty, price)
	for _, t := range e.traders.All() {
		if t == except || !t.Alive {
			continue
		}
		e.sessions[t.ID].Send(msg)
	}
	e.publish(marketUpdate{Type: "market", Side: side.String(), Product: product, Qty: qty, Price: price})
}

// settle dispatches the outcome of one matching run: a FILL to each side of
// every fill (the maker only if still alive), the audit record, the feed
// event, and the fee tally.
func (e *Engine) settle(fills []book.Fill, fee int64) {
	e.totalFees += fee
	for _, f := range fills {
		e.sendTo(f.Taker, wire.Fill(f.TakerOrder, f.Qty))
		e.sendTo(f.Maker, wire.Fill(f.MakerOrder, f.Qty))
		if e.journal != nil {
			if err := e.journal.RecordFill(f); err != nil {
				e.log.Errorw("journal_record_failed", "err", err)
			}
		}
		e.publish(fillUpdate{
			Type: "fill", Product: f.Product,
			Taker: f.Taker.ID, Maker: f.Maker.ID,
			Qty: f.Qty, Price: f.Price, Notional: f.Notional, Fee: f.Fee,
		})
		e.log.Infow("match",
			"product", f.Product,
			"maker_order", f.MakerOrder, "maker", f.Maker.ID,
			"taker_order", f.TakerOrder, "taker", f.Taker.ID,
			"qty", f.Qty, "value", f.Notional, "fee", f.Fee)
	}
}

func (e *Engine) publish(v any) {
	if e.feed != nil {
		e.feed.Publish(v)
	}
}
