package shortcode

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	filterCapacity      = 1_000_000
	filterFalsePositive = 0.01
)

// Filter is a bloom filter over known short codes. It pre-screens generated
// candidates so most collisions are caught without a store round trip. It is
// advisory: false positives only cost a regeneration, and the store's unique
// index remains the authority on uniqueness.
type Filter struct {
	mu sync.RWMutex
	bf *bloom.BloomFilter
}

// NewFilter returns an empty code filter sized for the expected link volume.
func NewFilter() *Filter {
	return &Filter{bf: bloom.NewWithEstimates(filterCapacity, filterFalsePositive)}
}

// Seed adds a batch of existing codes, typically at startup.
func (f *Filter) Seed(codes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, code := range codes {
		f.bf.AddString(code)
	}
}

// Add records a newly inserted code.
func (f *Filter) Add(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bf.AddString(code)
}

// MayContain reports whether the code possibly exists. False means
// definitely absent.
func (f *Filter) MayContain(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.TestString(code)
}
