package fetch

import (
	"context"
	"github.com/hauke96/sigolo/v2"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"
	"oqc/cache"
	"oqc/extent"
	"oqc/feature"
	"oqc/overpass"
	"sync"
	"time"
)

// QueryBuilder turns an extent into the query string sent to the endpoints.
type QueryBuilder func(e extent.Extent) string

// Parser maps a raw payload onto typed items. A parser error is terminal and never retried, since a retry would
// reproduce the same payload.
type Parser[I feature.Item] func(raw []byte) ([]I, error)

// Orchestrator resolves an extent to a query result: cache first, then the network. Extents larger than one tile are
// split, their tiles resolved under bounded concurrency, and the merged result is stored under the original extent's
// key so a repeated identical request becomes a single exact cache hit.
type Orchestrator[I feature.Item] struct {
	cache      *cache.Cache[I]
	executor   *overpass.Executor
	buildQuery QueryBuilder
	parse      Parser[I]

	tileSizeMeters  float64
	tileConcurrency int
	staggerDelay    time.Duration
}

func NewOrchestrator[I feature.Item](resultCache *cache.Cache[I], executor *overpass.Executor, buildQuery QueryBuilder, parse Parser[I], tileSizeMeters float64, tileConcurrency int, staggerDelay time.Duration) *Orchestrator[I] {
	if tileConcurrency < 1 {
		tileConcurrency = 1
	}
	return &Orchestrator[I]{
		cache:           resultCache,
		executor:        executor,
		buildQuery:      buildQuery,
		parse:           parse,
		tileSizeMeters:  tileSizeMeters,
		tileConcurrency: tileConcurrency,
		staggerDelay:    staggerDelay,
	}
}

// Resolve returns the items within the given extent, either from the cache or freshly fetched. Resolution is
// all-or-nothing: one tile's terminal failure fails the whole extent, though tiles resolved before the failure stay
// cached for the next attempt.
func (o *Orchestrator[I]) Resolve(ctx context.Context, e extent.Extent) (*cache.QueryResult[I], error) {
	if result, ok := o.cache.Get(e); ok {
		return result, nil
	}

	tiles := e.SplitIntoTiles(o.tileSizeMeters)
	if len(tiles) == 1 {
		return o.resolveTile(ctx, tiles[0])
	}

	sigolo.Debugf("Extent %s exceeds the tile size, resolving %d tiles", e, len(tiles))
	resolveStartTime := time.Now()

	results, err := o.resolveTiles(ctx, tiles)
	if err != nil {
		return nil, err
	}

	merged := o.merge(e, results)
	o.cache.Set(e, merged)

	sigolo.Debugf("Resolved and merged %d tiles with %d distinct items in %s", len(tiles), len(merged.Items), time.Since(resolveStartTime))
	return merged, nil
}

// resolveTiles runs the per-tile resolutions under a counting semaphore. Tile launches are staggered slightly to
// avoid request bursts against the rate-limited endpoints. Results land in a position-indexed slice, so the later
// merge is deterministic regardless of completion order.
func (o *Orchestrator[I]) resolveTiles(ctx context.Context, tiles []extent.Extent) ([]*cache.QueryResult[I], error) {
	tileCtx, cancelTiles := context.WithCancel(ctx)
	defer cancelTiles()

	results := make([]*cache.QueryResult[I], len(tiles))
	tileErrors := make([]error, len(tiles))
	semaphore := make(chan struct{}, o.tileConcurrency)

	var waitGroup sync.WaitGroup
	for i, tile := range tiles {
		if i > 0 && o.staggerDelay > 0 {
			select {
			case <-time.After(o.staggerDelay):
			case <-tileCtx.Done():
			}
		}

		waitGroup.Add(1)
		go func(i int, tile extent.Extent) {
			defer waitGroup.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if tileCtx.Err() != nil {
				tileErrors[i] = tileCtx.Err()
				return
			}

			result, err := o.resolveTile(tileCtx, tile)
			if err != nil {
				tileErrors[i] = err
				cancelTiles()
				return
			}
			results[i] = result
		}(i, tile)
	}
	waitGroup.Wait()

	// Prefer the tile's own failure over the cancellations it caused in its siblings.
	var firstErr error
	firstErrTile := -1
	for i, err := range tileErrors {
		if err == nil {
			continue
		}
		if firstErr == nil || (errors.Is(firstErr, context.Canceled) && !errors.Is(err, context.Canceled)) {
			firstErr = err
			firstErrTile = i
		}
	}
	if firstErr != nil {
		return nil, errors.Wrapf(firstErr, "Unable to resolve tile %d of extent %s", firstErrTile, tiles[firstErrTile])
	}

	return results, nil
}

// resolveTile checks the cache for the tile, queries the endpoints on a miss and writes the parsed result back.
func (o *Orchestrator[I]) resolveTile(ctx context.Context, tile extent.Extent) (*cache.QueryResult[I], error) {
	if result, ok := o.cache.Get(tile); ok {
		return result, nil
	}

	payload, err := o.executor.Execute(ctx, o.buildQuery(tile))
	if err != nil {
		return nil, err
	}

	items, err := o.parse(payload)
	if err != nil {
		return nil, err
	}

	result := &cache.QueryResult[I]{
		Extent:    tile,
		Items:     items,
		Timestamp: time.Now(),
	}
	o.cache.Set(tile, result)
	return result, nil
}

// merge unions the tile results in tile order, deduplicating items that appear in multiple adjoining tiles by their
// stable identifier, and tags the union with the parent extent. The union inherits the oldest tile timestamp, so
// data served from cached tiles cannot outlive its expiry by being merged into a freshly stamped entry.
func (o *Orchestrator[I]) merge(parent extent.Extent, results []*cache.QueryResult[I]) *cache.QueryResult[I] {
	seen := map[osm.ElementID]struct{}{}
	var merged []I
	timestamp := time.Now()

	for _, result := range results {
		if result.Timestamp.Before(timestamp) {
			timestamp = result.Timestamp
		}
		for _, item := range result.Items {
			if _, ok := seen[item.ElementID()]; ok {
				continue
			}
			seen[item.ElementID()] = struct{}{}
			merged = append(merged, item)
		}
	}

	return &cache.QueryResult[I]{
		Extent:    parent,
		Items:     merged,
		Timestamp: timestamp,
	}
}
