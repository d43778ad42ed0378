package store

import (
	"time"

	"github.com/inboxtools/outlook-mcp/model"
)

// SearchEntry is one cached search: the original query and the full,
// non-summarized record set it produced. Immutable once stored.
type SearchEntry struct {
	Handle    string
	Query     string
	CreatedAt time.Time
	Records   []model.Record
}

// SearchCache stores full search result sets under generated handles so a
// bounded preview can be returned now and drilled into later.
type SearchCache struct {
	cache *Cache[SearchEntry]
}

// NewSearchCache creates a search cache with the given options.
func NewSearchCache(opts Options) (*SearchCache, error) {
	c, err := New[SearchEntry](opts)
	if err != nil {
		return nil, err
	}
	return &SearchCache{cache: c}, nil
}

// Put stores records for query under a fresh handle and returns the handle.
func (s *SearchCache) Put(query string, records []model.Record) string {
	handle := GenerateHandle()
	s.cache.Put(handle, SearchEntry{
		Handle:    handle,
		Query:     query,
		CreatedAt: time.Now(),
		Records:   records,
	})
	return handle
}

// Get returns the full entry for handle, or a miss when absent or expired.
func (s *SearchCache) Get(handle string) (SearchEntry, bool) {
	return s.cache.Get(handle)
}

// GetResult returns the index-th stored record for handle. An out-of-range
// index is a miss, not an error.
func (s *SearchCache) GetResult(handle string, index int) (model.Record, bool) {
	e, ok := s.cache.Get(handle)
	if !ok {
		return model.Record{}, false
	}
	if index < 0 || index >= len(e.Records) {
		return model.Record{}, false
	}
	return e.Records[index], true
}

// List returns the handles of all live entries in insertion order.
func (s *SearchCache) List() []string {
	return s.cache.List()
}

// Remove deletes the entry for handle, reporting whether one was removed.
func (s *SearchCache) Remove(handle string) bool {
	return s.cache.Remove(handle)
}

// Clear removes every cached search.
func (s *SearchCache) Clear() {
	s.cache.Clear()
}

// Stop terminates the background sweep.
func (s *SearchCache) Stop() {
	s.cache.Stop()
}
