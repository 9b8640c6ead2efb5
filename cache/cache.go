package cache

import (
	"encoding/json"
	"fmt"
	"github.com/hauke96/sigolo/v2"
	"github.com/pkg/errors"
	"oqc/extent"
	"oqc/feature"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FormatVersion is embedded in every cache key. Bumping it orphans all previously persisted entries without any
// migration, the orphans are swept by CleanupExpired or ClearAll.
const FormatVersion = 2

type Stats struct {
	Kind          string `json:"kind"`
	MemoryEntries int    `json:"memoryEntries"`
	DiskEntries   int    `json:"diskEntries"`
	DiskSizeBytes int64  `json:"diskSizeBytes"`
}

// Cache is a two-tier store of query results keyed by geographic extent. The fast tier is an in-process map, the
// durable tier one JSON file per key that survives restarts and is promoted into memory on a hit. A lookup is also
// served from an entry covering a larger extent, filtered to the requested one.
type Cache[I feature.Item] struct {
	kindPrefix string
	baseFolder string
	ttl        time.Duration
	notifier   *Notifier

	entries      map[string]*QueryResult[I]
	entriesMutex sync.Mutex
}

func NewCache[I feature.Item](kindPrefix string, baseFolder string, ttl time.Duration, notifier *Notifier) *Cache[I] {
	return &Cache[I]{
		kindPrefix: kindPrefix,
		baseFolder: baseFolder,
		ttl:        ttl,
		notifier:   notifier,
		entries:    map[string]*QueryResult[I]{},
	}
}

// key returns the versioned cache key of the given extent. The bounds use a fixed decimal precision so that repeated
// requests with identical boundaries map onto the same key.
func (c *Cache[I]) key(e extent.Extent) string {
	return fmt.Sprintf("%s_v%d_%.5f_%.5f_%.5f_%.5f", c.kindPrefix, FormatVersion, e.MinLon, e.MinLat, e.MaxLon, e.MaxLat)
}

func (c *Cache[I]) filenameForKey(key string) string {
	return filepath.Join(c.baseFolder, key+".json")
}

func (c *Cache[I]) currentVersionPrefix() string {
	return fmt.Sprintf("%s_v%d_", c.kindPrefix, FormatVersion)
}

// extentFromFilename recovers the extent from a cache filename of the current format version.
func (c *Cache[I]) extentFromFilename(filename string) (extent.Extent, bool) {
	if !strings.HasPrefix(filename, c.currentVersionPrefix()) || !strings.HasSuffix(filename, ".json") {
		return extent.Extent{}, false
	}

	boundsPart := strings.TrimSuffix(strings.TrimPrefix(filename, c.currentVersionPrefix()), ".json")
	parts := strings.Split(boundsPart, "_")
	if len(parts) != 4 {
		return extent.Extent{}, false
	}

	bounds := make([]float64, 4)
	for i, part := range parts {
		value, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return extent.Extent{}, false
		}
		bounds[i] = value
	}

	return extent.New(bounds[0], bounds[1], bounds[2], bounds[3]), true
}

func (c *Cache[I]) isFresh(timestamp time.Time) bool {
	return time.Since(timestamp) <= c.ttl
}

// Get looks the given extent up: exact memory match first, then exact disk match (promoted into memory), then a scan
// over the known entries for an unexpired superset of the extent. Superset hits are filtered down to items
// intersecting the requested extent. The returned result carries the from-cache flag; the second return value is
// false on a miss.
func (c *Cache[I]) Get(e extent.Extent) (*QueryResult[I], bool) {
	key := c.key(e)

	c.entriesMutex.Lock()
	if result, ok := c.entries[key]; ok {
		if c.isFresh(result.Timestamp) {
			c.entriesMutex.Unlock()
			sigolo.Tracef("Exact memory cache hit for %s", key)
			return c.resultForCaller(result, e, false), true
		}
		delete(c.entries, key)
	}
	c.entriesMutex.Unlock()

	if result, ok := c.readFromDisk(key); ok {
		sigolo.Tracef("Exact disk cache hit for %s", key)
		c.promote(key, result)
		return c.resultForCaller(result, e, false), true
	}

	c.entriesMutex.Lock()
	for entryKey, result := range c.entries {
		// Expired entries are removed on encounter, the scan touches them anyway.
		if !c.isFresh(result.Timestamp) {
			delete(c.entries, entryKey)
			continue
		}
		if result.Extent.Contains(e) {
			c.entriesMutex.Unlock()
			sigolo.Tracef("Superset memory cache hit for %s from %s", key, result.Extent)
			return c.resultForCaller(result, e, true), true
		}
	}
	c.entriesMutex.Unlock()

	for _, entry := range c.listDiskEntries() {
		if !entry.extent.Contains(e) {
			continue
		}
		if result, ok := c.readFromDisk(entry.key); ok {
			sigolo.Tracef("Superset disk cache hit for %s from %s", key, entry.extent)
			c.promote(entry.key, result)
			return c.resultForCaller(result, e, true), true
		}
	}

	return nil, false
}

// resultForCaller synthesizes the copy handed back to a caller: tagged as from-cache and, for superset hits, holding
// only the items intersecting the requested extent.
func (c *Cache[I]) resultForCaller(result *QueryResult[I], requested extent.Extent, filter bool) *QueryResult[I] {
	items := result.Items
	if filter {
		items = make([]I, 0, len(result.Items))
		for _, item := range result.Items {
			if requested.Intersects(item.GetGeometry().Bound()) {
				items = append(items, item)
			}
		}
	}

	return &QueryResult[I]{
		Extent:    requested,
		Items:     items,
		Timestamp: result.Timestamp,
		FromCache: true,
	}
}

// Set stores the result under the extent's key: the memory tier is updated immediately, the disk tier best-effort. A
// persistence failure is logged but not fatal, memory still serves the running session.
func (c *Cache[I]) Set(e extent.Extent, result *QueryResult[I]) {
	stored := &QueryResult[I]{
		Extent:    e,
		Items:     result.Items,
		Timestamp: result.Timestamp,
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now()
	}

	key := c.key(e)
	c.entriesMutex.Lock()
	c.entries[key] = stored
	c.entriesMutex.Unlock()

	err := c.writeToDisk(key, stored)
	if err != nil {
		sigolo.Errorf("Unable to persist cache entry %s, it will only serve this session: %+v", key, err)
	}

	c.notifier.notifyChanged()
}

func (c *Cache[I]) writeToDisk(key string, result *QueryResult[I]) error {
	err := os.MkdirAll(c.baseFolder, os.ModePerm)
	if err != nil {
		return errors.Wrapf(err, "Unable to create cache base folder %s", c.baseFolder)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return errors.Wrapf(err, "Unable to serialize cache entry %s", key)
	}

	filename := c.filenameForKey(key)
	err = os.WriteFile(filename, data, 0644)
	if err != nil {
		return errors.Wrapf(err, "Unable to write cache file %s", filename)
	}

	return nil
}

// readFromDisk loads and deserializes the entry with the given key. Expired entries are removed on encounter.
// Unreadable entries self-heal: the file is deleted and the lookup counts as a miss, no error surfaces.
func (c *Cache[I]) readFromDisk(key string) (*QueryResult[I], bool) {
	filename := c.filenameForKey(key)

	info, err := os.Stat(filename)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			sigolo.Errorf("Unable to stat cache file %s: %v", filename, err)
		}
		return nil, false
	}

	// The modification time is the TTL clock of the disk tier.
	if !c.isFresh(info.ModTime()) {
		sigolo.Debugf("Cache file %s is expired, removing it", filename)
		c.removeFile(filename)
		c.notifier.notifyChanged()
		return nil, false
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		sigolo.Errorf("Unable to read cache file %s: %v", filename, err)
		return nil, false
	}

	var result QueryResult[I]
	err = json.Unmarshal(data, &result)
	if err != nil {
		sigolo.Debugf("Cache file %s is corrupt, removing it: %v", filename, err)
		c.removeFile(filename)
		c.notifier.notifyChanged()
		return nil, false
	}

	result.FromCache = false
	return &result, true
}

func (c *Cache[I]) promote(key string, result *QueryResult[I]) {
	c.entriesMutex.Lock()
	defer c.entriesMutex.Unlock()
	c.entries[key] = result
}

type diskEntry struct {
	key    string
	extent extent.Extent
}

// listDiskEntries returns the persisted entries of the current format version. Files of older versions are ignored
// here, CleanupExpired sweeps them.
func (c *Cache[I]) listDiskEntries() []diskEntry {
	dirEntries, err := os.ReadDir(c.baseFolder)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			sigolo.Errorf("Unable to list cache base folder %s: %v", c.baseFolder, err)
		}
		return nil
	}

	var entries []diskEntry
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() {
			continue
		}
		e, ok := c.extentFromFilename(dirEntry.Name())
		if !ok {
			continue
		}
		entries = append(entries, diskEntry{
			key:    strings.TrimSuffix(dirEntry.Name(), ".json"),
			extent: e,
		})
	}
	return entries
}

// Invalidate removes the entry stored under the given extent's key from both tiers.
func (c *Cache[I]) Invalidate(e extent.Extent) {
	key := c.key(e)

	c.entriesMutex.Lock()
	delete(c.entries, key)
	c.entriesMutex.Unlock()

	c.removeFile(c.filenameForKey(key))
	c.notifier.notifyChanged()
}

// ClearAll drops every entry of this kind from memory and disk, regardless of format version.
func (c *Cache[I]) ClearAll() {
	c.entriesMutex.Lock()
	c.entries = map[string]*QueryResult[I]{}
	c.entriesMutex.Unlock()

	dirEntries, err := os.ReadDir(c.baseFolder)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		sigolo.Errorf("Unable to list cache base folder %s: %v", c.baseFolder, err)
	}
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || !strings.HasPrefix(dirEntry.Name(), c.kindPrefix+"_") {
			continue
		}
		c.removeFile(filepath.Join(c.baseFolder, dirEntry.Name()))
	}

	c.notifier.notifyChanged()
}

// CleanupExpired sweeps both tiers and returns the number of removed entries. Persisted entries of older format
// versions count as expired.
func (c *Cache[I]) CleanupExpired() int {
	count := 0

	c.entriesMutex.Lock()
	for key, result := range c.entries {
		if !c.isFresh(result.Timestamp) {
			delete(c.entries, key)
			count++
		}
	}
	c.entriesMutex.Unlock()

	dirEntries, err := os.ReadDir(c.baseFolder)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		sigolo.Errorf("Unable to list cache base folder %s: %v", c.baseFolder, err)
	}
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || !strings.HasPrefix(dirEntry.Name(), c.kindPrefix+"_") {
			continue
		}

		filename := filepath.Join(c.baseFolder, dirEntry.Name())

		if _, ok := c.extentFromFilename(dirEntry.Name()); !ok {
			sigolo.Debugf("Cache file %s has an outdated format, removing it", filename)
			c.removeFile(filename)
			count++
			continue
		}

		info, err := dirEntry.Info()
		if err != nil {
			sigolo.Errorf("Unable to stat cache file %s: %v", filename, err)
			continue
		}
		if !c.isFresh(info.ModTime()) {
			c.removeFile(filename)
			count++
		}
	}

	if count > 0 {
		c.notifier.notifyChanged()
	}
	return count
}

func (c *Cache[I]) GetStats() Stats {
	c.entriesMutex.Lock()
	memoryEntries := len(c.entries)
	c.entriesMutex.Unlock()

	stats := Stats{
		Kind:          c.kindPrefix,
		MemoryEntries: memoryEntries,
	}

	dirEntries, err := os.ReadDir(c.baseFolder)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			sigolo.Errorf("Unable to list cache base folder %s: %v", c.baseFolder, err)
		}
		return stats
	}

	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || !strings.HasPrefix(dirEntry.Name(), c.kindPrefix+"_") {
			continue
		}
		info, err := dirEntry.Info()
		if err != nil {
			continue
		}
		stats.DiskEntries++
		stats.DiskSizeBytes += info.Size()
	}

	return stats
}

// Warm promotes every unexpired persisted entry overlapping the given extent into memory and returns how many
// entries were promoted. Used ahead of an anticipated request burst.
func (c *Cache[I]) Warm(e extent.Extent) int {
	warmed := 0
	for _, entry := range c.listDiskEntries() {
		if !entry.extent.Intersects(e.ToBound()) {
			continue
		}
		if result, ok := c.readFromDisk(entry.key); ok {
			c.promote(entry.key, result)
			warmed++
		}
	}
	return warmed
}

func (c *Cache[I]) removeFile(filename string) {
	err := os.Remove(filename)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		sigolo.Errorf("Unable to remove cache file %s: %v", filename, err)
	}
}
