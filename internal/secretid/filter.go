package secretid

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Filter is a concurrency-safe bloom filter over the ids known to exist.
// It lets read paths skip a store round-trip for ids that were certainly
// never created. False positives fall through to the store, so a positive
// answer proves nothing; a negative answer is authoritative only for ids
// added since Prime ran.
//
// The filter is strictly process-local: Add is never propagated, so it is
// only safe when this process is the sole writer to the store. A
// multi-instance deployment must not install one, or an id created on a
// sibling instance would be reported absent here.
type Filter struct {
	mu sync.RWMutex
	bf *bloom.BloomFilter
}

// NewFilter sizes the filter for the expected number of live ids and the
// target false-positive rate.
func NewFilter(expectedIDs uint, falsePositiveRate float64) *Filter {
	return &Filter{bf: bloom.NewWithEstimates(expectedIDs, falsePositiveRate)}
}

// Prime loads the filter with ids already present in the store. Must run
// before the filter is consulted, otherwise records created by a previous
// process would be reported absent.
func (f *Filter) Prime(ids []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.bf.AddString(id)
	}
}

// Add records a freshly created id.
func (f *Filter) Add(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bf.AddString(id)
}

// MayExist reports whether id could be present in the store.
func (f *Filter) MayExist(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.TestString(id)
}
