// Package wire implements the exchange's ASCII protocol: `;`-delimited
// messages with space-separated fields, in both directions.
package wire

import (
	"bufio"
	"fmt"
	"io"

	"spx/pkg/book"
)

// Delim terminates every message on the wire. Newlines have no meaning.
const Delim = ';'

// Reader frames an inbound byte stream into messages. It accumulates bytes
// until the delimiter, which it discards. End-of-stream with no delimiter
// means no more messages, even if bytes were pending.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r for message framing.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadMessage returns the next complete message without its delimiter.
// It returns io.EOF once the stream ends.
func (r *Reader) ReadMessage() (string, error) {
	msg, err := r.br.ReadString(Delim)
	if err != nil {
		// A partial message with no delimiter is not a message.
		return "", io.EOF
	}
	return msg[:len(msg)-1], nil
}

// Exchange→trader messages.

func MarketOpen() []byte { return []byte("MARKET OPEN;") }

func Accepted(orderID int) []byte { return fmt.Appendf(nil, "ACCEPTED %d;", orderID) }

func Amended(orderID int) []byte { return fmt.Appendf(nil, "AMENDED %d;", orderID) }

func Cancelled(orderID int) []byte { return fmt.Appendf(nil, "CANCELLED %d;", orderID) }

func Fill(orderID int, qty int64) []byte { return fmt.Appendf(nil, "FILL %d %d;", orderID, qty) }

func Invalid() []byte { return []byte("INVALID;") }

// Market is the broadcast sent to every other live trader when an order is
// accepted or amended (with its pre-match quantity and price) and when one
// is cancelled (with zero quantity and price).
func Market(side book.Side, product string, qty, price int64) []byte {
	return fmt.Appendf(nil, "MARKET %s %s %d %d;", side, product, qty, price)
}
