package search

import (
	"context"
	"sync"

	"github.com/turtacn/KeyIP-Intelligence/internal/config"
	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
)

// defaultEngine backs the package-level Load/Search/Unload/Statistics
// convenience functions, for callers (e.g. the CLI or language bindings)
// that prefer a single process-wide handle over carrying an *Engine
// explicitly. Engine itself has no such assumption — this is a thin façade.
var (
	defaultMu     sync.Mutex
	defaultEngine *Engine
)

// Configure installs the process-wide default Engine, replacing any
// previously configured one (without unloading it first — callers that want
// a clean swap should Unload the old Default() themselves beforehand).
func Configure(cfg config.FingerprintConfig, log logging.Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultEngine = New(cfg, log)
}

// Default returns the process-wide Engine, lazily constructing one with
// zero-value configuration (runtime.NumCPU threads, default leaf limit) if
// Configure was never called.
func Default() *Engine {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultEngine == nil {
		defaultEngine = New(config.FingerprintConfig{}, logging.NewNopLogger())
	}
	return defaultEngine
}

// Load, Search, SearchBatch, Unload, and Statistics mirror the identically
// named Engine methods against the process-wide Default() engine.

func Load(ctx context.Context, loader Loader, expectedSize int) error {
	return Default().Load(ctx, loader, expectedSize)
}

func Search(ctx context.Context, queryID, bitString string, opts SearchOptions) ([]SearchResult, error) {
	return Default().Search(ctx, queryID, bitString, opts)
}

func SearchBatch(ctx context.Context, queries []Record, opts SearchOptions) ([][]SearchResult, error) {
	return Default().SearchBatch(ctx, queries, opts)
}

func Unload() {
	Default().Unload()
}

func Statistics() (Stats, error) {
	return Default().Statistics()
}
