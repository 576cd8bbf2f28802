package product

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Set is the fixed universe of tradeable products, established at startup.
// Membership never changes while the exchange is running.
type Set struct {
	names []string
	index map[string]int
}

// New builds a Set from an explicit list of product names.
func New(names ...string) *Set {
	s := &Set{index: make(map[string]int, len(names))}
	for _, n := range names {
		if _, dup := s.index[n]; dup {
			continue
		}
		s.index[n] = len(s.names)
		s.names = append(s.names, n)
	}
	return s
}

// Load reads a product file: the first line holds the product count N,
// the next N lines hold one product name each.
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open product file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return nil, fmt.Errorf("product file %s: missing count line", path)
	}
	count, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil || count <= 0 {
		return nil, fmt.Errorf("product file %s: bad count %q", path, sc.Text())
	}

	names := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("product file %s: expected %d products, got %d", path, count, i)
		}
		name := strings.TrimSpace(sc.Text())
		if name == "" {
			return nil, fmt.Errorf("product file %s: empty product name at line %d", path, i+2)
		}
		names = append(names, name)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read product file: %w", err)
	}
	return New(names...), nil
}

// Contains reports whether name is a member of the product universe.
func (s *Set) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Names returns the products in file order. The returned slice is shared;
// callers must not mutate it.
func (s *Set) Names() []string { return s.names }

// Count returns the number of products.
func (s *Set) Count() int { return len(s.names) }
