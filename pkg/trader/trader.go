package trader

import "fmt"

// Position tracks what one trader holds in one product: the signed quantity
// and the accumulated signed cash delta. Only the matching engine mutates a
// Position, and only inside a single matching step.
type Position struct {
	Product  string
	Quantity int64
	Cash     int64
}

// Trader is one connected participant. Traders are created at startup, one
// per session, and are never removed: a disconnected trader is marked dead
// so that order-book back-references stay valid.
type Trader struct {
	ID    int
	Alive bool

	// NextSeq is the order id the trader must use on its next new order.
	// It starts at 0 and advances by one per accepted order; rejected
	// submissions leave it untouched.
	NextSeq int

	positions map[string]*Position
}

// Position returns the trader's position in product, creating a zero
// position on first access. The position set is fixed to the product
// universe given at registration, so lookups for known products never miss.
func (t *Trader) Position(product string) *Position {
	p, ok := t.positions[product]
	if !ok {
		p = &Position{Product: product}
		t.positions[product] = p
	}
	return p
}

// Positions returns the trader's positions in product-universe order.
func (t *Trader) Positions(products []string) []Position {
	out := make([]Position, 0, len(products))
	for _, name := range products {
		out = append(out, *t.Position(name))
	}
	return out
}

// Registry owns every trader for the lifetime of the exchange. It is only
// touched from the event-loop goroutine, so it carries no lock.
type Registry struct {
	products []string
	traders  []*Trader
}

// NewRegistry creates an empty registry over the fixed product universe.
func NewRegistry(products []string) *Registry {
	return &Registry{products: products}
}

// Add registers the next trader, assigning ids sequentially from 0, with a
// zero position in every product.
func (r *Registry) Add() *Trader {
	t := &Trader{
		ID:        len(r.traders),
		Alive:     true,
		positions: make(map[string]*Position, len(r.products)),
	}
	for _, p := range r.products {
		t.positions[p] = &Position{Product: p}
	}
	r.traders = append(r.traders, t)
	return t
}

// Get returns the trader with the given id.
func (r *Registry) Get(id int) (*Trader, error) {
	if id < 0 || id >= len(r.traders) {
		return nil, fmt.Errorf("unknown trader %d", id)
	}
	return r.traders[id], nil
}

// All returns every registered trader in id order.
func (r *Registry) All() []*Trader { return r.traders }

// Count returns the number of registered traders, dead or alive.
func (r *Registry) Count() int { return len(r.traders) }

// LiveCount returns how many traders are still alive.
func (r *Registry) LiveCount() int {
	n := 0
	for _, t := range r.traders {
		if t.Alive {
			n++
		}
	}
	return n
}

// MarkDead flips the trader to dead. It reports whether the trader was
// alive, so a disconnect and a child-exit for the same trader count once.
func (r *Registry) MarkDead(id int) bool {
	if id < 0 || id >= len(r.traders) {
		return false
	}
	t := r.traders[id]
	if !t.Alive {
		return false
	}
	t.Alive = false
	return true
}
