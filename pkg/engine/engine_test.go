package engine_test

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"spx/pkg/engine"
	"spx/pkg/product"
	"spx/pkg/trader"
	"spx/pkg/wire"
)

const waitTimeout = 2 * time.Second

// traderConn is the trader side of one session: commands go in through the
// pipe, exchange messages come back out through a framed reader goroutine.
type traderConn struct {
	t    *testing.T
	id   int
	cmd  *io.PipeWriter
	msgs chan string
}

func newConn(t *testing.T, id int, cmd *io.PipeWriter, out io.Reader) *traderConn {
	c := &traderConn{t: t, id: id, cmd: cmd, msgs: make(chan string, 64)}
	r := wire.NewReader(out)
	go func() {
		defer close(c.msgs)
		for {
			msg, err := r.ReadMessage()
			if err != nil {
				return
			}
			c.msgs <- msg
		}
	}()
	return c
}

func (c *traderConn) send(msg string) {
	c.t.Helper()
	if _, err := io.WriteString(c.cmd, msg); err != nil {
		c.t.Fatalf("trader %d: write %q: %v", c.id, msg, err)
	}
}

func (c *traderConn) expect(want string) {
	c.t.Helper()
	select {
	case msg, ok := <-c.msgs:
		if !ok {
			c.t.Fatalf("trader %d: stream closed waiting for %q", c.id, want)
		}
		if msg != want {
			c.t.Fatalf("trader %d: got %q, want %q", c.id, msg, want)
		}
	case <-time.After(waitTimeout):
		c.t.Fatalf("trader %d: timed out waiting for %q", c.id, want)
	}
}

func (c *traderConn) expectClosed() {
	c.t.Helper()
	select {
	case msg, ok := <-c.msgs:
		if ok {
			c.t.Fatalf("trader %d: got %q, want closed stream", c.id, msg)
		}
	case <-time.After(waitTimeout):
		c.t.Fatalf("trader %d: timed out waiting for stream close", c.id)
	}
}

// disconnect closes the command pipe, which the engine sees as an
// ungraceful end-of-stream.
func (c *traderConn) disconnect() { _ = c.cmd.Close() }

// recordFeed captures published observer events as their JSON encodings.
type recordFeed struct {
	mu   sync.Mutex
	msgs []string
}

func (f *recordFeed) Publish(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.msgs = append(f.msgs, string(b))
	f.mu.Unlock()
}

func (f *recordFeed) contains(sub string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if strings.Contains(m, sub) {
			return true
		}
	}
	return false
}

// startExchange wires n piped trader sessions into a fresh engine and runs
// it. Every connection has consumed its MARKET OPEN on return.
func startExchange(t *testing.T, n int, feed engine.Feed) (*engine.Engine, []*traderConn, <-chan int64) {
	t.Helper()
	eng, err := engine.New(engine.Config{
		Products: product.New("GOLD"),
		Logger:   zap.NewNop().Sugar(),
		Feed:     feed,
	})
	if err != nil {
		t.Fatal(err)
	}

	conns := make([]*traderConn, n)
	for i := 0; i < n; i++ {
		cmdR, cmdW := io.Pipe()
		outR, outW := io.Pipe()
		tr := eng.AddTrader(cmdR, outW, nil)
		conns[i] = newConn(t, tr.ID, cmdW, outR)
	}

	fees := make(chan int64, 1)
	go func() { fees <- eng.Run() }()
	for _, c := range conns {
		c.expect("MARKET OPEN")
	}
	return eng, conns, fees
}

func waitFees(t *testing.T, fees <-chan int64) int64 {
	t.Helper()
	select {
	case f := <-fees:
		return f
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for the event loop to finish")
		return 0
	}
}

func waitFor(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func position(t *testing.T, snap engine.Snapshot, traderID int, prod string) trader.Position {
	t.Helper()
	for _, ts := range snap.Traders {
		if ts.ID != traderID {
			continue
		}
		for _, p := range ts.Positions {
			if p.Product == prod {
				return p
			}
		}
	}
	t.Fatalf("no position for trader %d product %s", traderID, prod)
	return trader.Position{}
}

func TestRestAndCross(t *testing.T) {
	feed := &recordFeed{}
	eng, conns, fees := startExchange(t, 2, feed)
	t0, t1 := conns[0], conns[1]

	t0.send("BUY 0 GOLD 10 100;")
	t0.expect("ACCEPTED 0")
	t1.expect("MARKET BUY GOLD 10 100")

	// Crosses the resting buy; executes at the resting price, not 90.
	t1.send("SELL 0 GOLD 10 90;")
	t1.expect("ACCEPTED 0")
	t0.expect("MARKET SELL GOLD 10 90")
	t1.expect("FILL 0 10")
	t0.expect("FILL 0 10")

	t0.disconnect()
	t1.disconnect()
	if got := waitFees(t, fees); got != 10 {
		t.Errorf("total fees = %d, want 10", got)
	}

	snap := eng.Snapshot()
	if snap.TotalFees != 10 || snap.LiveTraders != 0 {
		t.Errorf("snapshot fees=%d live=%d, want 10 and 0", snap.TotalFees, snap.LiveTraders)
	}
	if p := position(t, snap, t0.id, "GOLD"); p.Quantity != 10 || p.Cash != -1000 {
		t.Errorf("buyer position = %+v, want qty 10 cash -1000", p)
	}
	// The seller was the taker and pays the 1% fee on top of settlement.
	if p := position(t, snap, t1.id, "GOLD"); p.Quantity != -10 || p.Cash != 990 {
		t.Errorf("seller position = %+v, want qty -10 cash 990", p)
	}

	if !feed.contains(`"type":"fill"`) {
		t.Error("feed never saw a fill event")
	}
	if !feed.contains(`"type":"market"`) {
		t.Error("feed never saw a market event")
	}
	if !feed.contains(`"type":"session"`) {
		t.Error("feed never saw a session event")
	}
}

func TestInvalidCommands(t *testing.T) {
	_, conns, fees := startExchange(t, 1, nil)
	c := conns[0]

	c.send("HELLO;")
	c.expect("INVALID")
	c.send("BUY 5 GOLD 10 100;")
	c.expect("INVALID")
	c.send("BUY 1000000 GOLD 1 1;")
	c.expect("INVALID")

	// A rejection never consumes the sequence number.
	c.send("BUY 0 GOLD 10 100;")
	c.expect("ACCEPTED 0")

	c.disconnect()
	if got := waitFees(t, fees); got != 0 {
		t.Errorf("total fees = %d, want 0", got)
	}
}

func TestCancelBroadcast(t *testing.T) {
	_, conns, fees := startExchange(t, 2, nil)
	t0, t1 := conns[0], conns[1]

	t0.send("BUY 0 GOLD 10 100;")
	t0.expect("ACCEPTED 0")
	t1.expect("MARKET BUY GOLD 10 100")

	t0.send("CANCEL 0;")
	t0.expect("CANCELLED 0")
	t1.expect("MARKET BUY GOLD 0 0")

	// Cancelling an order that is gone produces nothing at all; the next
	// order proves no stray reply was queued in between.
	t0.send("CANCEL 0;")
	t0.send("BUY 1 GOLD 5 50;")
	t0.expect("ACCEPTED 1")
	t1.expect("MARKET BUY GOLD 5 50")

	t0.disconnect()
	t1.disconnect()
	if got := waitFees(t, fees); got != 0 {
		t.Errorf("total fees = %d, want 0", got)
	}
}

func TestAmendRematches(t *testing.T) {
	_, conns, fees := startExchange(t, 2, nil)
	t0, t1 := conns[0], conns[1]

	t0.send("BUY 0 GOLD 10 90;")
	t0.expect("ACCEPTED 0")
	t1.expect("MARKET BUY GOLD 10 90")

	t1.send("SELL 0 GOLD 10 100;")
	t1.expect("ACCEPTED 0")
	t0.expect("MARKET SELL GOLD 10 100")

	// Raising the bid to the offer re-enters the book as a taker.
	t0.send("AMEND 0 10 100;")
	t0.expect("AMENDED 0")
	t1.expect("MARKET BUY GOLD 10 100")
	t0.expect("FILL 0 10")
	t1.expect("FILL 0 10")

	// Amend does not consume a sequence number.
	t0.send("BUY 1 GOLD 1 1;")
	t0.expect("ACCEPTED 1")
	t1.expect("MARKET BUY GOLD 1 1")

	t0.disconnect()
	t1.disconnect()
	if got := waitFees(t, fees); got != 10 {
		t.Errorf("total fees = %d, want 10", got)
	}
}

func TestDisconnectLeavesOrdersWorking(t *testing.T) {
	eng, conns, fees := startExchange(t, 2, nil)
	t0, t1 := conns[0], conns[1]

	t0.send("BUY 0 GOLD 10 100;")
	t0.expect("ACCEPTED 0")
	t1.expect("MARKET BUY GOLD 10 100")

	t0.disconnect()
	t0.expectClosed()
	waitFor(t, "trader 0 never went dead", func() bool {
		return eng.Snapshot().LiveTraders == 1
	})

	// The dead trader's order still rests and still fills; only the live
	// side is notified.
	t1.send("SELL 0 GOLD 10 90;")
	t1.expect("ACCEPTED 0")
	t1.expect("FILL 0 10")

	t1.disconnect()
	if got := waitFees(t, fees); got != 10 {
		t.Errorf("total fees = %d, want 10", got)
	}
	snap := eng.Snapshot()
	if p := position(t, snap, t0.id, "GOLD"); p.Quantity != 10 || p.Cash != -1000 {
		t.Errorf("dead trader position = %+v, want qty 10 cash -1000", p)
	}
}

// Many traders submitting at once must not lose or coalesce events: every
// accepted order advances exactly one sequence number, so after the dust
// settles each trader's NextSeq equals the number of orders it sent.
func TestConcurrentOrderBurst(t *testing.T) {
	const nTraders = 8
	const nOrders = 50

	eng, err := engine.New(engine.Config{
		Products: product.New("GOLD"),
		Logger:   zap.NewNop().Sugar(),
	})
	if err != nil {
		t.Fatal(err)
	}

	writers := make([]*io.PipeWriter, nTraders)
	for i := 0; i < nTraders; i++ {
		cmdR, cmdW := io.Pipe()
		outR, outW := io.Pipe()
		eng.AddTrader(cmdR, outW, nil)
		writers[i] = cmdW
		// Drain replies so no session write loop ever backs up.
		go func() { _, _ = io.Copy(io.Discard, outR) }()
	}

	fees := make(chan int64, 1)
	go func() { fees <- eng.Run() }()

	var wg sync.WaitGroup
	for _, w := range writers {
		wg.Add(1)
		go func(w *io.PipeWriter) {
			defer wg.Done()
			// Same side and price everywhere, so nothing crosses and
			// every order rests.
			for seq := 0; seq < nOrders; seq++ {
				fmt.Fprintf(w, "BUY %d GOLD 1 1;", seq)
			}
			_ = w.Close()
		}(w)
	}
	wg.Wait()

	if got := waitFees(t, fees); got != 0 {
		t.Errorf("total fees = %d, want 0", got)
	}

	snap := eng.Snapshot()
	for _, ts := range snap.Traders {
		if ts.NextSeq != nOrders {
			t.Errorf("trader %d NextSeq = %d, want %d", ts.ID, ts.NextSeq, nOrders)
		}
	}
	var resting int64
	for _, ps := range snap.Products {
		for _, l := range ps.Buys {
			resting += l.Qty
		}
	}
	if want := int64(nTraders * nOrders); resting != want {
		t.Errorf("resting quantity = %d, want %d", resting, want)
	}
}

func TestPartialFillRests(t *testing.T) {
	eng, conns, fees := startExchange(t, 2, nil)
	t0, t1 := conns[0], conns[1]

	t0.send("BUY 0 GOLD 4 100;")
	t0.expect("ACCEPTED 0")
	t1.expect("MARKET BUY GOLD 4 100")

	t1.send("SELL 0 GOLD 10 100;")
	t1.expect("ACCEPTED 0")
	t0.expect("MARKET SELL GOLD 10 100")
	t1.expect("FILL 0 4")
	t0.expect("FILL 0 4")

	waitFor(t, "remainder never rested", func() bool {
		snap := eng.Snapshot()
		for _, ps := range snap.Products {
			if ps.Product != "GOLD" {
				continue
			}
			return len(ps.Sells) == 1 && ps.Sells[0].Qty == 6 && ps.Sells[0].Price == 100
		}
		return false
	})

	t0.disconnect()
	t1.disconnect()
	if got := waitFees(t, fees); got != 4 {
		t.Errorf("total fees = %d, want 4", got)
	}
}
