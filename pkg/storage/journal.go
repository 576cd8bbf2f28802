// Package storage keeps an append-only audit journal of executions in
// Pebble. The journal is write-mostly: the engine appends a record per fill
// and the API reads recent fills back out. Nothing is ever restored into
// the matching engine from here.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"spx/pkg/book"
)

// FillRecord is the persisted form of one execution.
type FillRecord struct {
	Seq        uint64    `json:"seq"`
	Time       time.Time `json:"time"`
	Product    string    `json:"product"`
	Taker      int       `json:"taker"`
	Maker      int       `json:"maker"`
	TakerOrder int       `json:"taker_order"`
	MakerOrder int       `json:"maker_order"`
	Qty        int64     `json:"qty"`
	Price      int64     `json:"price"`
	Notional   int64     `json:"notional"`
	Fee        int64     `json:"fee"`
}

// Journal is an append-only Pebble-backed fill log. RecordFill is called
// from the event-loop goroutine only; reads may come from any goroutine.
type Journal struct {
	db *pebble.DB

	mu   sync.Mutex
	seq  uint64
	fees int64
}

// keys: f:<8-byte big-endian seq>, fees
func kFill(seq uint64) []byte {
	key := append([]byte("f:"), 0, 0, 0, 0, 0, 0, 0, 0)
	binary.BigEndian.PutUint64(key[2:], seq)
	return key
}
func kFees() []byte { return []byte("fees") }

var fillPrefixEnd = []byte("f;") // 'f' then ':'+1

// Open opens (or creates) a journal at path and resumes the sequence from
// the last record present.
func Open(path string) (*Journal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j := &Journal{db: db}

	it, err := db.NewIter(&pebble.IterOptions{LowerBound: []byte("f:"), UpperBound: fillPrefixEnd})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal iterator: %w", err)
	}
	if it.Last() {
		j.seq = binary.BigEndian.Uint64(it.Key()[2:])
	}
	if err := it.Close(); err != nil {
		db.Close()
		return nil, err
	}

	if val, closer, err := db.Get(kFees()); err == nil {
		j.fees = int64(binary.BigEndian.Uint64(val))
		closer.Close()
	} else if err != pebble.ErrNotFound {
		db.Close()
		return nil, fmt.Errorf("read journal fees: %w", err)
	}
	return j, nil
}

// Close flushes and closes the underlying database.
func (j *Journal) Close() error { return j.db.Close() }

// RecordFill appends one fill and advances the running fee total.
func (j *Journal) RecordFill(f book.Fill) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.seq++
	rec := FillRecord{
		Seq:        j.seq,
		Time:       time.Now().UTC(),
		Product:    f.Product,
		Taker:      f.Taker.ID,
		Maker:      f.Maker.ID,
		TakerOrder: f.TakerOrder,
		MakerOrder: f.MakerOrder,
		Qty:        f.Qty,
		Price:      f.Price,
		Notional:   f.Notional,
		Fee:        f.Fee,
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal fill record: %w", err)
	}
	if err := j.db.Set(kFill(j.seq), val, pebble.Sync); err != nil {
		return fmt.Errorf("write fill record: %w", err)
	}

	j.fees += f.Fee
	var fees [8]byte
	binary.BigEndian.PutUint64(fees[:], uint64(j.fees))
	if err := j.db.Set(kFees(), fees[:], pebble.Sync); err != nil {
		return fmt.Errorf("write fee total: %w", err)
	}
	return nil
}

// TotalFees returns the running fee total across the journal's lifetime.
func (j *Journal) TotalFees() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fees
}

// RecentFills returns up to n of the most recent fills, newest first.
func (j *Journal) RecentFills(n int) ([]FillRecord, error) {
	it, err := j.db.NewIter(&pebble.IterOptions{LowerBound: []byte("f:"), UpperBound: fillPrefixEnd})
	if err != nil {
		return nil, fmt.Errorf("journal iterator: %w", err)
	}
	defer it.Close()

	var out []FillRecord
	for ok := it.Last(); ok && len(out) < n; ok = it.Prev() {
		var rec FillRecord
		if err := json.Unmarshal(it.Value(), &rec); err != nil {
			return nil, fmt.Errorf("decode fill record: %w", err)
		}
		out = append(out, rec)
	}
	return out, it.Error()
}
