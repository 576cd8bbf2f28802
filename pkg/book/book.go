package book

// ProductBook holds every resting order for one product as a single doubly
// linked sequence: sell orders first, best (lowest) price first, then buy
// orders, best (highest) price first. Within a price, arrival order is
// preserved. The book owns the orders linked into it; removal unlinks
// neighbours before the order is let go.
type ProductBook struct {
	Product string

	head  *Order
	sells int
	buys  int
}

// NewProductBook creates an empty book for one product.
func NewProductBook(product string) *ProductBook {
	return &ProductBook{Product: product}
}

// Counts returns the number of resting buy and sell orders.
func (pb *ProductBook) Counts() (buys, sells int) { return pb.buys, pb.sells }

// firstSell returns the best resting sell order, or nil.
func (pb *ProductBook) firstSell() *Order {
	if pb.sells == 0 {
		return nil
	}
	return pb.head
}

// firstBuy returns the best resting buy order, or nil. The buy region
// starts after the last sell order.
func (pb *ProductBook) firstBuy() *Order {
	if pb.buys == 0 {
		return nil
	}
	n := pb.head
	for i := 0; i < pb.sells; i++ {
		n = n.next
	}
	return n
}

// link splices o between prev and next.
func (pb *ProductBook) link(prev, o, next *Order) {
	o.prev, o.next = prev, next
	if prev == nil {
		pb.head = o
	} else {
		prev.next = o
	}
	if next != nil {
		next.prev = o
	}
}

// unlink removes o from the sequence and clears its links so the order can
// never dangle back into the book.
func (pb *ProductBook) unlink(o *Order) {
	if o.prev == nil {
		pb.head = o.next
	} else {
		o.prev.next = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	}
	o.prev, o.next = nil, nil
	if o.Side == Sell {
		pb.sells--
	} else {
		pb.buys--
	}
}

// insert places o into its side's region in price-time order. Equal prices
// keep FIFO: the walk only stops at a strictly worse price.
func (pb *ProductBook) insert(o *Order) {
	var prev *Order
	n := pb.head
	if o.Side == Sell {
		for i := 0; i < pb.sells; i++ {
			if n.Price > o.Price {
				break
			}
			prev, n = n, n.next
		}
		pb.link(prev, o, n)
		pb.sells++
		return
	}
	for i := 0; i < pb.sells; i++ {
		prev, n = n, n.next
	}
	for n != nil {
		if n.Price < o.Price {
			break
		}
		prev, n = n, n.next
	}
	pb.link(prev, o, n)
	pb.buys++
}

// remove unlinks and returns the order with the given trader and order id,
// or nil if the book does not hold it.
func (pb *ProductBook) remove(traderID, orderID int) *Order {
	for n := pb.head; n != nil; n = n.next {
		if n.Trader.ID == traderID && n.ID == orderID {
			pb.unlink(n)
			return n
		}
	}
	return nil
}

// Level aggregates the resting quantity at one price on one side.
type Level struct {
	Side   Side
	Price  int64
	Qty    int64
	Orders int
}

// Levels returns the book's price levels, sells best-first then buys
// best-first.
func (pb *ProductBook) Levels() (sells, buys []Level) {
	n := pb.head
	for i := 0; i < pb.sells; i++ {
		if len(sells) > 0 && sells[len(sells)-1].Price == n.Price {
			sells[len(sells)-1].Qty += n.Qty
			sells[len(sells)-1].Orders++
		} else {
			sells = append(sells, Level{Side: Sell, Price: n.Price, Qty: n.Qty, Orders: 1})
		}
		n = n.next
	}
	for ; n != nil; n = n.next {
		if len(buys) > 0 && buys[len(buys)-1].Price == n.Price {
			buys[len(buys)-1].Qty += n.Qty
			buys[len(buys)-1].Orders++
		} else {
			buys = append(buys, Level{Side: Buy, Price: n.Price, Qty: n.Qty, Orders: 1})
		}
	}
	return sells, buys
}

// Book is the full exchange book: one ProductBook per product in the fixed
// universe. Only the event-loop goroutine touches it, so it carries no lock.
type Book struct {
	products []string
	books    map[string]*ProductBook
}

// New creates a Book covering the given products.
func New(products []string) *Book {
	b := &Book{
		products: products,
		books:    make(map[string]*ProductBook, len(products)),
	}
	for _, p := range products {
		b.books[p] = NewProductBook(p)
	}
	return b
}

// Product returns the book for one product, or nil for an unknown product.
func (b *Book) Product(name string) *ProductBook { return b.books[name] }

// Products returns the product universe in file order.
func (b *Book) Products() []string { return b.products }

// Remove finds, unlinks and returns the order with the given trader and
// order id. Order ids are unique only within a trader, so every product's
// book is scanned. Returns nil if no such order rests anywhere.
func (b *Book) Remove(traderID, orderID int) *Order {
	for _, p := range b.products {
		pb := b.books[p]
		if pb.buys+pb.sells == 0 {
			continue
		}
		if o := pb.remove(traderID, orderID); o != nil {
			return o
		}
	}
	return nil
}
