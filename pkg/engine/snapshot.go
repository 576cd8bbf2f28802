package engine

import (
	"sync"

	"spx/pkg/book"
	"spx/pkg/trader"
)

// Snapshot is the engine's externally visible state, copied out after each
// processed event. Observers (the REST API) read snapshots instead of the
// live book, which stays private to the event-loop goroutine.
type Snapshot struct {
	Products    []ProductSnapshot `json:"products"`
	Traders     []TraderSnapshot  `json:"traders"`
	TotalFees   int64             `json:"total_fees"`
	LiveTraders int               `json:"live_traders"`
}

// ProductSnapshot is one product's aggregated price levels, best first on
// each side.
type ProductSnapshot struct {
	Product string       `json:"product"`
	Sells   []book.Level `json:"sells"`
	Buys    []book.Level `json:"buys"`
}

// TraderSnapshot is one trader's liveness and positions.
type TraderSnapshot struct {
	ID        int               `json:"id"`
	Alive     bool              `json:"alive"`
	NextSeq   int               `json:"next_seq"`
	Positions []trader.Position `json:"positions"`
}

type snapshotCache struct {
	mu  sync.RWMutex
	cur Snapshot
}

func (c *snapshotCache) set(s Snapshot) {
	c.mu.Lock()
	c.cur = s
	c.mu.Unlock()
}

func (c *snapshotCache) get() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

// Snapshot returns the state as of the last fully processed event. Safe to
// call from any goroutine.
func (e *Engine) Snapshot() Snapshot {
	return e.snap.get()
}

// publishSnapshot rebuilds the snapshot from the live book and registry.
// Called from the event loop only.
func (e *Engine) publishSnapshot() {
	s := Snapshot{
		TotalFees:   e.totalFees,
		LiveTraders: e.traders.LiveCount(),
	}
	for _, name := range e.book.Products() {
		sells, buys := e.book.Product(name).Levels()
		s.Products = append(s.Products, ProductSnapshot{Product: name, Sells: sells, Buys: buys})
	}
	for _, t := range e.traders.All() {
		s.Traders = append(s.Traders, TraderSnapshot{
			ID:        t.ID,
			Alive:     t.Alive,
			NextSeq:   t.NextSeq,
			Positions: t.Positions(e.book.Products()),
		})
	}
	e.snap.set(s)
}
