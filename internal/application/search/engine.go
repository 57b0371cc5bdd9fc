package search

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/turtacn/KeyIP-Intelligence/internal/config"
	"github.com/turtacn/KeyIP-Intelligence/internal/domain/fingerprint"
	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/concurrency/workerpool"
	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// SearchOptions controls one similarity query against a loaded Engine.
type SearchOptions struct {
	// Threshold is the minimum Tanimoto coefficient a match must meet.
	// <= 0 searches the whole population; > 1 yields no matches.
	Threshold float64
	// Sorted requests results ordered by descending score; false returns
	// them in first-found order.
	Sorted bool
	// Limit caps the number of results returned after sorting/collection;
	// 0 means unbounded.
	Limit int
}

// SearchResult is one match returned from Engine.Search.
type SearchResult struct {
	ID    string
	Score float64
}

// Stats is a snapshot of engine population and search-performance counters.
type Stats struct {
	PopulationSize   int
	BucketLabels     []string
	BucketCounts     []int64
	BucketPercentage []float64
	LastSearchXOR    int64
	LastSearchExact  int64
}

// Engine is the process-facing handle around a loaded fingerprint
// similarity population: one CardinalityGrid plus the worker pool and
// bookkeeping needed to run concurrent batched searches against it.
type Engine struct {
	log logging.Logger
	cfg config.FingerprintConfig

	mu       sync.RWMutex
	grid     *fingerprint.Grid
	pool     *workerpool.Pool
	nBits    int
	loadedAt time.Time
}

// New constructs an unloaded Engine. Call Load before issuing searches.
func New(cfg config.FingerprintConfig, log logging.Logger) *Engine {
	if log == nil {
		log = logging.NewNopLogger()
	}
	fingerprint.InitPopcountTable()
	return &Engine{log: log, cfg: cfg}
}

func (e *Engine) threads() int {
	if e.cfg.Threads > 0 {
		return e.cfg.Threads
	}
	return runtime.NumCPU()
}

func (e *Engine) leafLimit() int {
	if e.cfg.LeafLimit > 0 {
		return e.cfg.LeafLimit
	}
	return 32
}

// Load parses every record a Loader produces into fingerprints of a common
// bit length and builds a fresh CardinalityGrid from them, replacing any
// previously loaded population. The bit length is taken from the longest
// record seen (shorter ones are zero-extended, matching Fingerprint.Tanimoto's
// different-length handling).
func (e *Engine) Load(ctx context.Context, loader Loader, expectedSize int) error {
	records, err := loader.Load(ctx, expectedSize)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.New(errors.CodeEngineInvalidQuery, "no records parsed from input")
	}

	nBits := 0
	for _, r := range records {
		if len(r.BitString) > nBits {
			nBits = len(r.BitString)
		}
	}

	nBytes := (nBits + 7) / 8
	fps := make([]*fingerprint.Fingerprint, 0, len(records))
	for _, r := range records {
		fp := fingerprint.New(r.ID, bitStringToBytes(r.BitString, nBytes), nBits)
		fps = append(fps, fp)
	}

	pool := workerpool.New(e.threads())
	grid := fingerprint.BuildGrid(fps, nBits, e.leafLimit(), pool)
	grid.InitStatistics()

	e.mu.Lock()
	if e.pool != nil {
		e.pool.Stop()
	}
	e.grid = grid
	e.pool = pool
	e.nBits = nBits
	e.loadedAt = time.Now()
	e.mu.Unlock()

	e.log.Info("fingerprint engine loaded",
		logging.Int("population_size", len(fps)),
		logging.Int("bit_length", nBits),
		logging.Int("threads", e.threads()))
	return nil
}

// Unload discards the current population, stopping its worker pool. A
// subsequent Search call returns CodeEngineNotLoaded until Load runs again.
func (e *Engine) Unload() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool != nil {
		e.pool.Stop()
	}
	e.grid = nil
	e.pool = nil
	e.nBits = 0
}

// Search runs one query bit string against the loaded population and returns
// every match at or above opts.Threshold, per opts.Sorted/opts.Limit.
func (e *Engine) Search(ctx context.Context, queryID, bitString string, opts SearchOptions) ([]SearchResult, error) {
	e.mu.RLock()
	grid := e.grid
	nBits := e.nBits
	e.mu.RUnlock()

	if grid == nil {
		return nil, errors.New(errors.CodeEngineNotLoaded, "fingerprint engine has no population loaded")
	}
	if bitString == "" {
		return nil, errors.New(errors.CodeEngineInvalidQuery, "query bit string is empty")
	}

	nBytes := nBits
	if len(bitString) > nBytes {
		nBytes = len(bitString)
	}
	nBytes = (nBytes + 7) / 8
	query := fingerprint.New(queryID, bitStringToBytes(bitString, nBytes), nBits)

	var sink *fingerprint.Sink
	if opts.Sorted {
		sink = fingerprint.NewSortedSink()
	} else {
		sink = fingerprint.NewUnsortedSink()
	}

	grid.SetSizeLastSearch(1)
	if err := grid.Search(sink, query, opts.Threshold); err != nil {
		return nil, err
	}

	results := sink.Results()
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{ID: r.MatchID, Score: r.Score})
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

// SearchBatch runs queries concurrently over the shared worker pool,
// returning one result slice per query in input order. A failure in any
// single query is returned alongside the partial results already collected
// for the others.
func (e *Engine) SearchBatch(ctx context.Context, queries []Record, opts SearchOptions) ([][]SearchResult, error) {
	e.mu.RLock()
	grid := e.grid
	nBits := e.nBits
	e.mu.RUnlock()

	if grid == nil {
		return nil, errors.New(errors.CodeEngineNotLoaded, "fingerprint engine has no population loaded")
	}

	grid.SetSizeLastSearch(int64(len(queries)))

	out := make([][]SearchResult, len(queries))
	sinks := make([]*fingerprint.Sink, len(queries))
	var firstErr error
	var errOnce sync.Once

	for i, q := range queries {
		i := i
		if opts.Sorted {
			sinks[i] = fingerprint.NewSortedSink()
		} else {
			sinks[i] = fingerprint.NewUnsortedSink()
		}

		nBytes := nBits
		if len(q.BitString) > nBytes {
			nBytes = len(q.BitString)
		}
		nBytes = (nBytes + 7) / 8
		query := fingerprint.New(q.ID, bitStringToBytes(q.BitString, nBytes), nBits)

		grid.SearchAsync(sinks[i], query, opts.Threshold, func(err error) {
			errOnce.Do(func() { firstErr = err })
		})
	}
	// grid.Wait() is the completion barrier for every task dispatched via
	// SearchAsync; there is no per-call signal to wait on separately.
	grid.Wait()

	for i := range queries {
		results := sinks[i].Results()
		limited := make([]SearchResult, 0, len(results))
		for _, r := range results {
			limited = append(limited, SearchResult{ID: r.MatchID, Score: r.Score})
			if opts.Limit > 0 && len(limited) >= opts.Limit {
				break
			}
		}
		out[i] = limited
	}

	if firstErr != nil {
		return out, fmt.Errorf("one or more batch queries failed: %w", firstErr)
	}
	return out, nil
}

// Statistics returns a snapshot of the current population's size and the
// last search's per-bucket cardinality distribution and bound-check counts.
func (e *Engine) Statistics() (Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.grid == nil {
		return Stats{}, errors.New(errors.CodeEngineNotLoaded, "fingerprint engine has no population loaded")
	}
	labels, counts, pct := e.grid.Statistics()
	return Stats{
		PopulationSize:   e.grid.Size(),
		BucketLabels:     labels,
		BucketCounts:     counts,
		BucketPercentage: pct,
	}, nil
}

// bitStringToBytes packs a "0"/"1" ASCII bit string into nBytes of packed
// binary, matching Fingerprint's bit i -> byte i/8, mask 1<<(i%8) layout.
// Bits beyond the input's length (including due to zero-extension to a
// common population bit length) are left clear.
func bitStringToBytes(bits string, nBytes int) []byte {
	out := make([]byte, nBytes)
	for i := 0; i < len(bits) && i/8 < nBytes; i++ {
		if bits[i] == '1' {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}
