// File: internal/pagewatch/index.go
package pagewatch

import (
	"sort"
	"sync"
)

// Descriptor associates one image asset with the keywords that render it.
type Descriptor struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// Index maps keywords to descriptors. It is safe for concurrent use: the
// catalog loader fills it while the observer reads it.
type Index struct {
	mu        sync.RWMutex
	byKeyword map[string]Descriptor
}

// NewIndex builds an index from descriptors.
func NewIndex(descriptors ...Descriptor) *Index {
	idx := &Index{byKeyword: make(map[string]Descriptor)}
	idx.Add(descriptors...)
	return idx
}

// Add registers every keyword of every descriptor. A keyword already present
// is overwritten: the last descriptor listing it wins.
func (i *Index) Add(descriptors ...Descriptor) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, d := range descriptors {
		for _, kw := range d.Keywords {
			i.byKeyword[kw] = d
		}
	}
}

// Lookup returns the descriptor for keyword.
func (i *Index) Lookup(keyword string) (Descriptor, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	d, ok := i.byKeyword[keyword]
	return d, ok
}

// Len is the number of distinct keywords.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.byKeyword)
}

// Keywords returns every known keyword, sorted.
func (i *Index) Keywords() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	kws := make([]string, 0, len(i.byKeyword))
	for kw := range i.byKeyword {
		kws = append(kws, kw)
	}
	sort.Strings(kws)
	return kws
}
