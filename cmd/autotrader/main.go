// Command autotrader is a minimal example trader. It connects to the
// exchange FIFOs named by its trader-id argument, waits for the market to
// open, and lifts every sell it sees broadcast: each `MARKET SELL` with a
// positive quantity is answered with a matching BUY at the offered price,
// until a cumulative bought quantity cap is reached.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"spx/pkg/transport"
	"spx/pkg/wire"
)

// Stop bidding once this much quantity has been bought.
const maxBought = 1000

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("usage: %s <trader id>", os.Args[0])
	}
	id, err := strconv.Atoi(os.Args[1])
	if err != nil {
		log.Fatalf("bad trader id %q", os.Args[1])
	}

	// The exchange opened the write end first, so open our read end
	// first to unblock it, then our write end.
	in, err := os.OpenFile(transport.ExchangePipe(id), os.O_RDONLY, 0)
	if err != nil {
		log.Fatalf("open exchange pipe: %v", err)
	}
	defer in.Close()
	out, err := os.OpenFile(transport.TraderPipe(id), os.O_WRONLY, 0)
	if err != nil {
		log.Fatalf("open trader pipe: %v", err)
	}
	defer out.Close()

	r := wire.NewReader(in)
	seq := 0
	var bought int64

	for {
		msg, err := r.ReadMessage()
		if err != nil {
			return
		}
		fields := strings.Split(msg, " ")
		switch {
		case msg == "MARKET OPEN":
			// Nothing to do until order flow appears.

		case fields[0] == "MARKET" && len(fields) == 5 && fields[1] == "SELL":
			qty, qerr := strconv.ParseInt(fields[3], 10, 64)
			price, perr := strconv.ParseInt(fields[4], 10, 64)
			if qerr != nil || perr != nil || qty <= 0 {
				continue
			}
			if bought+qty > maxBought {
				return
			}
			fmt.Fprintf(out, "BUY %d %s %d %d;", seq, fields[2], qty, price)

		case fields[0] == "ACCEPTED":
			seq++

		case fields[0] == "FILL" && len(fields) == 3:
			if q, err := strconv.ParseInt(fields[2], 10, 64); err == nil {
				bought += q
			}
		}
	}
}
