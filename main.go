package main

import (
	"context"
	"fmt"
	"github.com/alecthomas/kong"
	"github.com/hauke96/sigolo/v2"
	"oqc/config"
	"oqc/extent"
	"oqc/feature"
	"oqc/fetch"
	ownIo "oqc/io"
	"oqc/overpass"
	"oqc/web"
	"os"
	"strings"
)

const VERSION = "v0.1.0"

var cli struct {
	Logging string      `help:"Logging verbosity." enum:"info,debug,trace" short:"l" default:"info"`
	Version VersionFlag `help:"Print version information and quit" name:"version" short:"v"`
	Config  string      `help:"Path to an optional YAML config file." short:"c"`
	Serve   struct {
	} `cmd:"" help:"Starts the HTTP API."`
	Query struct {
		Kind   string  `help:"The feature kind (roads, junctions or structures)." placeholder:"<kind>" arg:""`
		MinLon float64 `placeholder:"<min-lon>" arg:""`
		MinLat float64 `placeholder:"<min-lat>" arg:""`
		MaxLon float64 `placeholder:"<max-lon>" arg:""`
		MaxLat float64 `placeholder:"<max-lat>" arg:""`
	} `cmd:"" help:"Resolves the given extent and prints the result as GeoJSON."`
	Cache struct {
		Stats   struct{} `cmd:"" help:"Prints per-kind and total cache statistics."`
		Clear   struct{} `cmd:"" help:"Removes all cache entries of all kinds."`
		Cleanup struct{} `cmd:"" help:"Removes expired cache entries and prints how many were removed."`
	} `cmd:"" help:"Cache administration."`
}

type VersionFlag string

func (v VersionFlag) Decode(ctx *kong.DecodeContext) error { return nil }
func (v VersionFlag) IsBool() bool                         { return true }
func (v VersionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	fmt.Println(vars["version"])
	app.Exit(0)
	return nil
}

func main() {
	ctx := kong.Parse(
		&cli,
		kong.Name("oqc"),
		kong.Description("Queries roads, junctions and bridge/tunnel structures from OSM mirror endpoints with an extent-keyed cache."),
		kong.Vars{
			"version": VERSION,
		},
	)

	if strings.ToLower(cli.Logging) == "debug" {
		sigolo.SetDefaultLogLevel(sigolo.LOG_DEBUG)
	} else if strings.ToLower(cli.Logging) == "trace" {
		sigolo.SetDefaultLogLevel(sigolo.LOG_TRACE)
	} else if strings.ToLower(cli.Logging) == "info" {
		sigolo.SetDefaultLogLevel(sigolo.LOG_INFO)
		sigolo.SetDefaultFormatFunctionAll(sigolo.LogPlain)
	} else {
		sigolo.SetDefaultFormatFunctionAll(sigolo.LogPlain)
		sigolo.Fatalf("Unknown logging level '%s'", cli.Logging)
	}

	cfg, err := config.Load(cli.Config)
	sigolo.FatalCheck(err)

	service := fetch.NewService(serviceOptions(cfg))

	switch ctx.Command() {
	case "serve":
		web.StartServer(cfg.Port, service)
	case "query <kind> <min-lon> <min-lat> <max-lon> <max-lat>":
		kind, err := feature.KindFromString(cli.Query.Kind)
		sigolo.FatalCheck(err)

		e := extent.New(cli.Query.MinLon, cli.Query.MinLat, cli.Query.MaxLon, cli.Query.MaxLat)
		items, fromCache, err := service.ResolveItems(context.Background(), kind, e)
		sigolo.FatalCheck(err)

		sigolo.Debugf("Resolved %d items (fromCache=%v)", len(items), fromCache)
		err = ownIo.WriteItemsAsGeoJson(items, os.Stdout)
		sigolo.FatalCheck(err)
	case "cache stats":
		stats := service.Registry().GetStats()
		for _, kindStats := range stats.PerKind {
			sigolo.Infof("%-12s memory=%d disk=%d diskBytes=%d", kindStats.Kind, kindStats.MemoryEntries, kindStats.DiskEntries, kindStats.DiskSizeBytes)
		}
		sigolo.Infof("%-12s memory=%d disk=%d diskBytes=%d", "total", stats.TotalMemoryEntries, stats.TotalDiskEntries, stats.TotalDiskSizeBytes)
	case "cache clear":
		service.Registry().ClearAll()
		sigolo.Info("Cleared all caches")
	case "cache cleanup":
		removed := service.Registry().CleanupAllExpired()
		sigolo.Infof("Removed %d expired cache entries", removed)
	default:
		sigolo.Fatalf("Unknown command '%s'", ctx.Command())
	}
}

func serviceOptions(cfg config.Config) fetch.Options {
	endpoints := make([]overpass.Endpoint, 0, len(cfg.Endpoints))
	for _, endpointUrl := range cfg.Endpoints {
		endpoints = append(endpoints, overpass.Endpoint{Name: endpointUrl, URL: endpointUrl})
	}

	return fetch.Options{
		Endpoints:       endpoints,
		MaxRounds:       cfg.MaxRounds,
		RetryBackoff:    cfg.RetryBackoff,
		RequestTimeout:  cfg.RequestTimeout,
		CacheBaseFolder: cfg.CacheBaseFolder,
		CacheTTL:        cfg.CacheTTL,
		TileSizeMeters:  cfg.TileSizeMeters,
		TileConcurrency: cfg.TileConcurrency,
		StaggerDelay:    cfg.StaggerDelay,
	}
}
