package wire

import (
	"errors"
	"strconv"
	"strings"

	"spx/pkg/book"
	"spx/pkg/product"
)

// MaxFieldValue bounds quantities and prices, which are valid in
// [1, MaxFieldValue). Order ids are not bounded here; they are checked
// against the trader's sequence counter instead.
const MaxFieldValue = 1_000_000

// ErrInvalid is returned for any protocol violation. The caller answers
// with INVALID and leaves the trader's state untouched.
var ErrInvalid = errors.New("invalid command")

// Command is a validated trader instruction.
type Command interface{ isCommand() }

// NewOrder is a validated BUY or SELL.
type NewOrder struct {
	ID      int
	Product string
	Side    book.Side
	Qty     int64
	Price   int64
}

// Cancel asks to remove the trader's resting order with the given id.
type Cancel struct {
	ID int
}

// Amend asks to re-price and re-size the trader's resting order with the
// given id; the order then re-runs matching.
type Amend struct {
	ID    int
	Qty   int64
	Price int64
}

func (NewOrder) isCommand() {}
func (Cancel) isCommand()   {}
func (Amend) isCommand()    {}

// ParseCommand validates one inbound message for a trader whose next
// expected order-sequence number is nextSeq. Fields are separated by single
// spaces; missing or trailing fields are violations. A new order's id must
// equal nextSeq exactly; there is no bypass value. The sequence counter is
// advanced by the caller, only on success.
func ParseCommand(raw string, nextSeq int, products *product.Set) (Command, error) {
	fields := strings.Split(raw, " ")
	switch fields[0] {
	case "BUY", "SELL":
		if len(fields) != 5 {
			return nil, ErrInvalid
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil || id != nextSeq {
			return nil, ErrInvalid
		}
		if !products.Contains(fields[2]) {
			return nil, ErrInvalid
		}
		qty, ok := parseBounded(fields[3])
		if !ok {
			return nil, ErrInvalid
		}
		price, ok := parseBounded(fields[4])
		if !ok {
			return nil, ErrInvalid
		}
		side := book.Buy
		if fields[0] == "SELL" {
			side = book.Sell
		}
		return NewOrder{ID: id, Product: fields[2], Side: side, Qty: qty, Price: price}, nil

	case "CANCEL":
		if len(fields) != 2 {
			return nil, ErrInvalid
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, ErrInvalid
		}
		return Cancel{ID: id}, nil

	case "AMEND":
		if len(fields) != 4 {
			return nil, ErrInvalid
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, ErrInvalid
		}
		qty, ok := parseBounded(fields[2])
		if !ok {
			return nil, ErrInvalid
		}
		price, ok := parseBounded(fields[3])
		if !ok {
			return nil, ErrInvalid
		}
		return Amend{ID: id, Qty: qty, Price: price}, nil
	}
	return nil, ErrInvalid
}

// parseBounded parses a strictly positive integer below MaxFieldValue.
func parseBounded(s string) (int64, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 || v >= MaxFieldValue {
		return 0, false
	}
	return v, true
}
