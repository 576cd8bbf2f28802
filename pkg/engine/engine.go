// Package engine runs the exchange's event loop: it multiplexes every
// trader session into one stream of events and processes them strictly one
// at a time, so matching decisions are deterministic and serializable even
// though traders produce input concurrently.
package engine

import (
	"errors"
	"io"

	"go.uber.org/zap"

	"spx/pkg/book"
	"spx/pkg/product"
	"spx/pkg/trader"
	"spx/pkg/wire"
)

// DefaultSendQueue is the per-trader outbound buffer depth used when the
// config does not override it.
const DefaultSendQueue = 256

// Config assembles an Engine. Products and Logger are required; Feed and
// Journal are optional.
type Config struct {
	Products  *product.Set
	Logger    *zap.SugaredLogger
	Feed      Feed
	Journal   Journal
	SendQueue int
}

// Engine owns the order book and the trader registry. Both are mutated
// exclusively by the Run goroutine; no locking is needed beyond the
// snapshot cache.
type Engine struct {
	log      *zap.SugaredLogger
	products *product.Set
	book     *book.Book
	traders  *trader.Registry
	sessions map[int]*Session
	events   chan Event

	feed      Feed
	journal   Journal
	sendQueue int

	dead      int
	totalFees int64
	snap      snapshotCache
}

// New creates an engine over the fixed product universe. Traders are added
// with AddTrader before Run starts.
func New(cfg Config) (*Engine, error) {
	if cfg.Products == nil || cfg.Products.Count() == 0 {
		return nil, errors.New("engine: product set is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("engine: logger is required")
	}
	queue := cfg.SendQueue
	if queue <= 0 {
		queue = DefaultSendQueue
	}
	return &Engine{
		log:       cfg.Logger,
		products:  cfg.Products,
		book:      book.New(cfg.Products.Names()),
		traders:   trader.NewRegistry(cfg.Products.Names()),
		sessions:  make(map[int]*Session),
		events:    make(chan Event, 1024),
		feed:      cfg.Feed,
		journal:   cfg.Journal,
		sendQueue: queue,
	}, nil
}

// AddTrader registers the next trader session over its two dedicated
// endpoints. terminate, if non-nil, force-kills the trader's process on an
// ungraceful disconnect. Ids are assigned sequentially from 0 in call
// order.
func (e *Engine) AddTrader(in io.ReadCloser, out io.WriteCloser, terminate func() error) *trader.Trader {
	t := e.traders.Add()
	e.sessions[t.ID] = newSession(t.ID, in, out, terminate, e.sendQueue, e.events, e.log)
	return t
}

// SetFeed attaches the observer feed. Must be called before Run.
func (e *Engine) SetFeed(f Feed) { e.feed = f }

// NotifyExit reports that a trader's process ended on its own (child-exit
// notification). Safe to call from any goroutine.
func (e *Engine) NotifyExit(traderID int) {
	e.events <- Event{TraderID: traderID, Kind: EventExit}
}

// Run opens the market and processes events until every trader is dead.
// Each event completes fully, book mutation plus all notifications, before
// the next is read. Returns the total fees collected.
func (e *Engine) Run() int64 {
	e.log.Infow("market_open", "traders", e.traders.Count(), "products", e.products.Names())
	for _, s := range e.sessions {
		s.start()
		s.Send(wire.MarketOpen())
	}
	e.publishSnapshot()

	for e.dead < e.traders.Count() {
		ev := <-e.events
		switch ev.Kind {
		case EventMessage:
			e.handleMessage(ev)
		case EventDisconnect:
			e.handleDeath(ev.TraderID, true)
		case EventExit:
			e.handleDeath(ev.TraderID, false)
		}
		e.publishSnapshot()
	}

	e.log.Infow("trading_completed", "fees_collected", e.totalFees)
	return e.totalFees
}

// TotalFees returns the fees collected so far. Only meaningful from the
// event-loop goroutine or after Run returns; observers should use
// Snapshot.
func (e *Engine) TotalFees() int64 { return e.totalFees }

func (e *Engine) handleMessage(ev Event) {
	t, err := e.traders.Get(ev.TraderID)
	if err != nil || !t.Alive {
		return
	}
	e.log.Infow("parsing_command", "trader", t.ID, "raw", ev.Raw)

	cmd, err := wire.ParseCommand(ev.Raw, t.NextSeq, e.products)
	if err != nil {
		e.sendTo(t, wire.Invalid())
		e.log.Infow("command_rejected", "trader", t.ID, "raw", ev.Raw)
		return
	}

	switch c := cmd.(type) {
	case wire.NewOrder:
		t.NextSeq++
		o := &book.Order{Trader: t, ID: c.ID, Product: c.Product, Side: c.Side, Qty: c.Qty, Price: c.Price}
		// The accept and the market broadcast go out before matching,
		// carrying the order's full quantity and price.
		e.sendTo(t, wire.Accepted(o.ID))
		e.broadcastMarket(t, o.Side, o.Product, o.Qty, o.Price)
		fills, fee := e.book.Submit(o)
		e.settle(fills, fee)
		e.logBook(o.Product)

	case wire.Cancel:
		o := e.book.Remove(t.ID, c.ID)
		if o == nil {
			// Unknown order: no response defined beyond skipping.
			e.log.Debugw("cancel_unknown_order", "trader", t.ID, "order", c.ID)
			return
		}
		e.sendTo(t, wire.Cancelled(c.ID))
		e.broadcastMarket(t, o.Side, o.Product, 0, 0)
		e.logBook(o.Product)

	case wire.Amend:
		o := e.book.Remove(t.ID, c.ID)
		if o == nil {
			e.log.Debugw("amend_unknown_order", "trader", t.ID, "order", c.ID)
			return
		}
		o.Qty, o.Price = c.Qty, c.Price
		e.sendTo(t, wire.Amended(c.ID))
		e.broadcastMarket(t, o.Side, o.Product, o.Qty, o.Price)
		fills, fee := e.book.Submit(o)
		e.settle(fills, fee)
		e.logBook(o.Product)
	}
}

// logBook mirrors the post-order book report at debug level.
func (e *Engine) logBook(product string) {
	buys, sells := e.book.Product(product).Counts()
	e.log.Debugw("book_state", "product", product, "buy_orders", buys, "sell_orders", sells)
}

// handleDeath marks a trader dead exactly once. force distinguishes an
// ungraceful disconnect (end-of-stream, process still running) from a
// clean child exit.
func (e *Engine) handleDeath(traderID int, force bool) {
	if !e.traders.MarkDead(traderID) {
		return
	}
	e.dead++
	s := e.sessions[traderID]
	if force {
		s.kill()
	}
	s.close()
	e.log.Infow("trader_disconnected", "trader", traderID, "forced", force, "remaining", e.traders.LiveCount())
	e.publish(sessionUpdate{Type: "session", Trader: traderID, State: "disconnected"})
}
