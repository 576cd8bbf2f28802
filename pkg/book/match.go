package book

import "spx/pkg/trader"

// Fill records one execution between an incoming (taker) order and a
// resting (maker) order. Trader pointers are kept so the dispatcher can
// liveness-check each side before notifying it.
type Fill struct {
	Product    string
	Taker      *trader.Trader
	Maker      *trader.Trader
	TakerOrder int
	MakerOrder int
	Qty        int64
	Price      int64 // the resting order's price
	Notional   int64
	Fee        int64
}

// FeeFor returns the execution fee for one fill: 1% of the notional,
// rounded half up to a whole currency unit. The fee is charged to the
// taker only.
func FeeFor(notional int64) int64 {
	return (notional + 50) / 100
}

// Submit runs the incoming order through matching and rests any remainder.
// It mutates the product's book and every affected trader's position, and
// returns the fills in execution order plus the total fee they generated
// (zero when nothing crossed).
//
// The order's product must be a member of the book's universe; the parser
// guarantees that before an order gets here.
func (b *Book) Submit(o *Order) ([]Fill, int64) {
	return b.books[o.Product].submit(o)
}

func (pb *ProductBook) submit(o *Order) ([]Fill, int64) {
	var fills []Fill
	var fee int64

	// Walk the opposite region from its best price outward. Each
	// iteration either consumes the incoming order, consumes the maker,
	// or stops at the first price that no longer crosses.
	if o.Side == Sell {
		for o.Qty > 0 {
			m := pb.firstBuy()
			if m == nil || m.Price < o.Price {
				break
			}
			f := pb.fill(o, m)
			fills = append(fills, f)
			fee += f.Fee
		}
	} else {
		for o.Qty > 0 {
			m := pb.firstSell()
			if m == nil || m.Price > o.Price {
				break
			}
			f := pb.fill(o, m)
			fills = append(fills, f)
			fee += f.Fee
		}
	}

	if o.Qty > 0 {
		pb.insert(o)
	}
	return fills, fee
}

// fill executes one match between taker and maker for the overlapping
// quantity. The notional is priced at the maker's (resting) price, so price
// improvement always goes to the order that was already in the book. Both
// sides' positions move by the matched quantity and notional; the fee comes
// off the taker's cash leg alone.
func (pb *ProductBook) fill(taker, maker *Order) Fill {
	q := taker.Qty
	if maker.Qty < q {
		q = maker.Qty
	}
	notional := q * maker.Price
	fee := FeeFor(notional)

	buyer, seller := taker, maker
	if taker.Side == Sell {
		buyer, seller = maker, taker
	}
	bp := buyer.Trader.Position(pb.Product)
	bp.Quantity += q
	bp.Cash -= notional
	sp := seller.Trader.Position(pb.Product)
	sp.Quantity -= q
	sp.Cash += notional
	taker.Trader.Position(pb.Product).Cash -= fee

	taker.Qty -= q
	maker.Qty -= q
	if maker.Qty == 0 {
		pb.unlink(maker)
	}

	return Fill{
		Product:    pb.Product,
		Taker:      taker.Trader,
		Maker:      maker.Trader,
		TakerOrder: taker.ID,
		MakerOrder: maker.ID,
		Qty:        q,
		Price:      maker.Price,
		Notional:   notional,
		Fee:        fee,
	}
}
