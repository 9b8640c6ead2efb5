package cache

import (
	"oqc/extent"
	"oqc/feature"
	"time"
)

// kindCache is the kind-independent admin surface every Cache instantiation offers.
type kindCache interface {
	Invalidate(e extent.Extent)
	ClearAll()
	CleanupExpired() int
	GetStats() Stats
	Warm(e extent.Extent) int
}

type RegistryStats struct {
	PerKind            []Stats `json:"perKind"`
	TotalMemoryEntries int     `json:"totalMemoryEntries"`
	TotalDiskEntries   int     `json:"totalDiskEntries"`
	TotalDiskSizeBytes int64   `json:"totalDiskSizeBytes"`
}

// Registry aggregates one extent-keyed cache per item kind. All kinds share the base folder, the expiry policy and
// one change notifier.
type Registry struct {
	notifier   *Notifier
	roads      *Cache[feature.Road]
	junctions  *Cache[feature.Junction]
	structures *Cache[feature.Structure]
}

func NewRegistry(baseFolder string, ttl time.Duration) *Registry {
	notifier := NewNotifier()
	return &Registry{
		notifier:   notifier,
		roads:      NewCache[feature.Road](feature.KindRoads.String(), baseFolder, ttl, notifier),
		junctions:  NewCache[feature.Junction](feature.KindJunctions.String(), baseFolder, ttl, notifier),
		structures: NewCache[feature.Structure](feature.KindStructures.String(), baseFolder, ttl, notifier),
	}
}

func (r *Registry) Roads() *Cache[feature.Road] {
	return r.roads
}

func (r *Registry) Junctions() *Cache[feature.Junction] {
	return r.junctions
}

func (r *Registry) Structures() *Cache[feature.Structure] {
	return r.structures
}

func (r *Registry) Notifier() *Notifier {
	return r.notifier
}

func (r *Registry) kinds() []kindCache {
	return []kindCache{r.roads, r.junctions, r.structures}
}

// InvalidateAll removes the entries stored under the given extent's key for every kind.
func (r *Registry) InvalidateAll(e extent.Extent) {
	for _, cache := range r.kinds() {
		cache.Invalidate(e)
	}
}

func (r *Registry) ClearAll() {
	for _, cache := range r.kinds() {
		cache.ClearAll()
	}
}

// CleanupAllExpired sweeps every kind and returns the total number of removed entries.
func (r *Registry) CleanupAllExpired() int {
	count := 0
	for _, cache := range r.kinds() {
		count += cache.CleanupExpired()
	}
	return count
}

// PreWarm promotes the persisted entries overlapping the given extent into memory for every kind, ahead of an
// anticipated request burst. It returns the number of promoted entries.
func (r *Registry) PreWarm(e extent.Extent) int {
	count := 0
	for _, cache := range r.kinds() {
		count += cache.Warm(e)
	}
	return count
}

func (r *Registry) GetStats() RegistryStats {
	stats := RegistryStats{}
	for _, cache := range r.kinds() {
		kindStats := cache.GetStats()
		stats.PerKind = append(stats.PerKind, kindStats)
		stats.TotalMemoryEntries += kindStats.MemoryEntries
		stats.TotalDiskEntries += kindStats.DiskEntries
		stats.TotalDiskSizeBytes += kindStats.DiskSizeBytes
	}
	return stats
}
