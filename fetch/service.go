package fetch

import (
	"context"
	"oqc/cache"
	"oqc/extent"
	"oqc/feature"
	"oqc/overpass"
	"time"
)

// Options carries the injected configuration of a Service. There are no hidden defaults beyond clamping obviously
// broken values, the caller decides.
type Options struct {
	Endpoints       []overpass.Endpoint
	MaxRounds       int
	RetryBackoff    time.Duration
	RequestTimeout  time.Duration
	CacheBaseFolder string
	CacheTTL        time.Duration
	TileSizeMeters  float64
	TileConcurrency int
	StaggerDelay    time.Duration
}

// Service bundles one orchestrator per item kind over a shared endpoint executor and cache registry.
type Service struct {
	roads      *Orchestrator[feature.Road]
	junctions  *Orchestrator[feature.Junction]
	structures *Orchestrator[feature.Structure]
	registry   *cache.Registry
}

func NewService(options Options) *Service {
	executor := overpass.NewExecutor(options.Endpoints, options.MaxRounds, options.RetryBackoff, options.RequestTimeout)
	registry := cache.NewRegistry(options.CacheBaseFolder, options.CacheTTL)

	return &Service{
		roads: NewOrchestrator[feature.Road](
			registry.Roads(),
			executor,
			func(e extent.Extent) string { return overpass.BuildQuery(feature.KindRoads, e) },
			overpass.ParseRoads,
			options.TileSizeMeters, options.TileConcurrency, options.StaggerDelay),
		junctions: NewOrchestrator[feature.Junction](
			registry.Junctions(),
			executor,
			func(e extent.Extent) string { return overpass.BuildQuery(feature.KindJunctions, e) },
			overpass.ParseJunctions,
			options.TileSizeMeters, options.TileConcurrency, options.StaggerDelay),
		structures: NewOrchestrator[feature.Structure](
			registry.Structures(),
			executor,
			func(e extent.Extent) string { return overpass.BuildQuery(feature.KindStructures, e) },
			overpass.ParseStructures,
			options.TileSizeMeters, options.TileConcurrency, options.StaggerDelay),
		registry: registry,
	}
}

func (s *Service) Roads() *Orchestrator[feature.Road] {
	return s.roads
}

func (s *Service) Junctions() *Orchestrator[feature.Junction] {
	return s.junctions
}

func (s *Service) Structures() *Orchestrator[feature.Structure] {
	return s.structures
}

func (s *Service) Registry() *cache.Registry {
	return s.registry
}

// ResolveItems resolves the given kind over the given extent and returns the items as the kind-independent Item
// interface, for consumers like the HTTP API that render all kinds the same way.
func (s *Service) ResolveItems(ctx context.Context, kind feature.Kind, e extent.Extent) ([]feature.Item, bool, error) {
	switch kind {
	case feature.KindJunctions:
		result, err := s.junctions.Resolve(ctx, e)
		if err != nil {
			return nil, false, err
		}
		return toItems(result.Items), result.FromCache, nil
	case feature.KindStructures:
		result, err := s.structures.Resolve(ctx, e)
		if err != nil {
			return nil, false, err
		}
		return toItems(result.Items), result.FromCache, nil
	default:
		result, err := s.roads.Resolve(ctx, e)
		if err != nil {
			return nil, false, err
		}
		return toItems(result.Items), result.FromCache, nil
	}
}

func toItems[I feature.Item](items []I) []feature.Item {
	result := make([]feature.Item, 0, len(items))
	for _, item := range items {
		result = append(result, item)
	}
	return result
}
