package cache

import (
	"oqc/extent"
	"oqc/feature"
	"time"
)

// QueryResult is the immutable outcome of resolving one extent. Callers must not mutate the item slice, it may be a
// live cache reference.
type QueryResult[I feature.Item] struct {
	Extent extent.Extent `json:"extent"`

	// Items in insertion order, i.e. the order the parser or the merge produced them.
	Items []I `json:"items"`

	// Timestamp is the capture time of the underlying data. It is the TTL clock of the in-memory cache tier.
	Timestamp time.Time `json:"timestamp"`

	// FromCache is only ever true on the copy handed back to a caller, it is never persisted as true.
	FromCache bool `json:"-"`
}
