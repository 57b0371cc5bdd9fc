// Package search provides the application-level lifecycle around the
// in-memory fingerprint similarity engine (internal/domain/fingerprint):
// loading a population from an external source, dispatching searches, and
// exposing process statistics, wired with the platform's logging, error,
// caching, and audit conventions.
package search

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// Record is one (identifier, bit-string) pair as handed to the engine by a
// Loader, before being parsed into an internal/domain/fingerprint.Fingerprint.
type Record struct {
	ID        string
	BitString string
}

// Loader drives engine construction from an external record stream. Its
// contract is the only part of ingestion the core engine depends on; file
// parsing, tokenization, and transport are all external collaborators.
type Loader interface {
	// Load returns every record it can successfully parse from its source.
	// expectedSize is a sizing hint (0 means "unknown, count first"); the
	// returned slice length is always the number of records actually parsed,
	// never padded or truncated to expectedSize.
	Load(ctx context.Context, expectedSize int) ([]Record, error)
}

// defaultTokenization holds the loader's field/line splitting rules, per the
// external interface contract: field separators are any of `"`, `'`, `,`,
// `;`, space, tab; line terminators are LF, CR, NUL.
const fieldSeparators = "\"',; \t"
const lineTerminators = "\n\r\x00"

// maxBitStringLen is the implementation-defined safe upper bound a bit
// string is truncated to (see config.FingerprintConfig.MaxBitStringLength for
// the operator-tunable version used by the application layer); this package
// constant is the hard fallback when no configuration is wired in.
const maxBitStringLen = 1 << 20

// FileLoader reads records from a local file path.
type FileLoader struct {
	Path               string
	MaxBitStringLength int
}

// Load opens Path and parses its contents as records. InputUnreadable
// (file cannot be opened) surfaces as CodeEngineInputUnreadable.
func (l FileLoader) Load(ctx context.Context, expectedSize int) ([]Record, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeEngineInputUnreadable, fmt.Sprintf("cannot open %q", l.Path))
	}
	defer f.Close()
	return parseRecords(f, expectedSize, l.maxLen())
}

func (l FileLoader) maxLen() int {
	if l.MaxBitStringLength > 0 {
		return l.MaxBitStringLength
	}
	return maxBitStringLen
}

// ReaderLoader reads records from an already-open io.Reader (e.g. an
// in-process stream or a request body), with no notion of "unreadable
// input" beyond a read error partway through.
type ReaderLoader struct {
	R                  io.Reader
	MaxBitStringLength int
}

func (l ReaderLoader) Load(ctx context.Context, expectedSize int) ([]Record, error) {
	maxLen := l.MaxBitStringLength
	if maxLen <= 0 {
		maxLen = maxBitStringLen
	}
	return parseRecords(l.R, expectedSize, maxLen)
}

// StaticLoader hands back a pre-parsed, already-validated slice of records
// unchanged — the engine "accepts pre-parsed records" path from the external
// interface contract.
type StaticLoader struct {
	Records []Record
}

func (l StaticLoader) Load(ctx context.Context, expectedSize int) ([]Record, error) {
	return l.Records, nil
}

// parseRecords tokenizes data read from r into Records, following the
// default loader's field/line splitting rules. Malformed lines (zero
// non-whitespace fields) are skipped; bit strings longer than maxLen are
// truncated rather than rejected. expectedSize is used only to presize the
// returned slice; the population size is always the number of records
// successfully parsed.
func parseRecords(r io.Reader, expectedSize, maxLen int) ([]Record, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeEngineInputUnreadable, "reading record source failed")
	}

	lines := splitOnAny(raw, lineTerminators)

	cap := expectedSize
	if cap <= 0 {
		cap = len(lines)
	}
	out := make([]Record, 0, cap)

	seq := 0
	for _, line := range lines {
		fields := splitFieldsOnAny(line, fieldSeparators)
		if len(fields) == 0 {
			continue // MalformedRecord: zero non-whitespace fields, skip and continue.
		}

		var id, bitStr string
		if len(fields) == 1 {
			seq++
			id = fmt.Sprintf("%012d", seq)
			bitStr = fields[0]
		} else {
			id = fields[0]
			bitStr = fields[1]
			seq++
		}

		out = append(out, Record{ID: id, BitString: truncateBitString(bitStr, maxLen)})
	}
	return out, nil
}

// splitOnAny splits data into non-empty segments at any byte present in
// terminators, dropping empty segments (so consecutive terminators collapse).
func splitOnAny(data []byte, terminators string) []string {
	var out []string
	start := -1
	isTerm := func(b byte) bool {
		for i := 0; i < len(terminators); i++ {
			if terminators[i] == b {
				return true
			}
		}
		return false
	}
	for i, b := range data {
		if isTerm(b) {
			if start >= 0 {
				out = append(out, string(data[start:i]))
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, string(data[start:]))
	}
	return out
}

// splitFieldsOnAny is splitOnAny specialized for a single line's byte slice.
func splitFieldsOnAny(line string, separators string) []string {
	return splitOnAny([]byte(line), separators)
}

// truncateBitString scans s for the longest '0'/'1' prefix, capped at maxLen
// bytes — per BitStringTooLong policy, this is a silent truncation, not a
// reported error.
func truncateBitString(s string, maxLen int) string {
	n := 0
	for n < len(s) && n < maxLen && (s[n] == '0' || s[n] == '1') {
		n++
	}
	return s[:n]
}

// CountLines reports how many non-empty lines r contains, for callers that
// want to presize a Loader's expectedSize ahead of a full parse (the
// "expectedSize = 0 means count lines first" contract). It consumes r fully;
// callers needing both the count and the content should read into a buffer
// first.
func CountLines(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	n := 0
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			n++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, errors.Wrap(err, errors.CodeEngineInputUnreadable, "counting lines failed")
	}
	return n, nil
}
