package wire_test

import (
	"testing"

	"spx/pkg/book"
	"spx/pkg/product"
	"spx/pkg/wire"
)

func TestParseCommand(t *testing.T) {
	products := product.New("AAA", "BBB")

	tests := []struct {
		name    string
		raw     string
		nextSeq int
		want    wire.Command
		wantErr bool
	}{
		{
			name: "valid buy",
			raw:  "BUY 0 AAA 100 10",
			want: wire.NewOrder{ID: 0, Product: "AAA", Side: book.Buy, Qty: 100, Price: 10},
		},
		{
			name:    "valid sell at later sequence",
			raw:     "SELL 4 BBB 1 999999",
			nextSeq: 4,
			want:    wire.NewOrder{ID: 4, Product: "BBB", Side: book.Sell, Qty: 1, Price: 999999},
		},
		{
			name: "valid cancel",
			raw:  "CANCEL 2",
			want: wire.Cancel{ID: 2},
		},
		{
			name: "valid amend",
			raw:  "AMEND 1 50 20",
			want: wire.Amend{ID: 1, Qty: 50, Price: 20},
		},
		{name: "unknown verb", raw: "HOLD 0 AAA 1 1", wantErr: true},
		{name: "empty message", raw: "", wantErr: true},
		{name: "order id behind sequence", raw: "BUY 0 AAA 1 1", nextSeq: 3, wantErr: true},
		{name: "order id ahead of sequence", raw: "BUY 5 AAA 1 1", wantErr: true},
		{name: "order id at bound is not a bypass", raw: "BUY 1000000 AAA 1 1", wantErr: true},
		{name: "unknown product", raw: "BUY 0 CCC 1 1", wantErr: true},
		{name: "zero quantity", raw: "BUY 0 AAA 0 1", wantErr: true},
		{name: "negative quantity", raw: "BUY 0 AAA -5 1", wantErr: true},
		{name: "quantity at bound", raw: "BUY 0 AAA 1000000 1", wantErr: true},
		{name: "zero price", raw: "SELL 0 AAA 1 0", wantErr: true},
		{name: "price at bound", raw: "SELL 0 AAA 1 1000000", wantErr: true},
		{name: "non-numeric quantity", raw: "BUY 0 AAA ten 1", wantErr: true},
		{name: "missing field", raw: "BUY 0 AAA 100", wantErr: true},
		{name: "trailing garbage", raw: "BUY 0 AAA 100 10 extra", wantErr: true},
		{name: "double space", raw: "BUY 0 AAA  100 10", wantErr: true},
		{name: "cancel missing id", raw: "CANCEL", wantErr: true},
		{name: "cancel extra field", raw: "CANCEL 0 0", wantErr: true},
		{name: "cancel non-numeric id", raw: "CANCEL x", wantErr: true},
		{name: "amend missing price", raw: "AMEND 0 50", wantErr: true},
		{name: "amend extra field", raw: "AMEND 0 50 20 1", wantErr: true},
		{name: "amend zero quantity", raw: "AMEND 0 0 20", wantErr: true},
		{name: "amend price at bound", raw: "AMEND 0 50 1000000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := wire.ParseCommand(tt.raw, tt.nextSeq, products)
			if tt.wantErr {
				if err != wire.ErrInvalid {
					t.Fatalf("err = %v, want ErrInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("command = %+v, want %+v", got, tt.want)
			}
		})
	}
}
