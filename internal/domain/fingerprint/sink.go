package fingerprint

import (
	"fmt"
	"io"
	"sync"

	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// SinkMode selects a Sink's collection strategy.
type SinkMode int

const (
	// SinkUnsorted collects matches into an append-only linked list with no
	// ordering guarantee.
	SinkUnsorted SinkMode = iota
	// SinkSorted collects matches into an unbalanced binary tree keyed by
	// descending score.
	SinkSorted
	// SinkStream writes each match directly to an io.Writer as CSV and keeps
	// no in-memory state beyond a running count.
	SinkStream
)

// Result is one (queryId, matchId, score) record read back out of a Sink.
type Result struct {
	QueryID string
	MatchID string
	Match   *Fingerprint
	Score   float64
}

// resultNode is a node in either the unsorted linked list or the sorted
// binary tree, depending on the owning Sink's mode.
type resultNode struct {
	queryID string
	match   *Fingerprint
	score   float64
	left    *resultNode
	right   *resultNode
}

// Sink is a thread-safe collector of search matches. It takes an owned copy
// of each queryID (the caller may reuse its buffer) and holds a non-owning
// reference to each matched Fingerprint, valid for the Sink's own lifetime.
type Sink struct {
	mode SinkMode
	mu   sync.Mutex
	root *resultNode // unsorted: root.left doubles as the tail pointer.
	size int64

	w   io.Writer
	sep string
}

// NewUnsortedSink returns a Sink that collects matches into an append-only
// singly linked list in arrival order (no ordering guarantee across
// goroutines). Insertion is O(1): the root node's left pointer doubles as
// the tail pointer, avoiding a separate tail field.
func NewUnsortedSink() *Sink {
	return &Sink{mode: SinkUnsorted}
}

// NewSortedSink returns a Sink that collects matches into an unbalanced
// binary tree keyed by descending score; ties are broken by insertion into
// the right subtree. Deliberately unbalanced per the design notes — do not
// substitute a balanced tree.
func NewSortedSink() *Sink {
	return &Sink{mode: SinkSorted}
}

// NewStreamSink returns a Sink that writes each match directly to w as one
// CSV line (score formatted with 7 fractional digits) using sep as the field
// separator, writing the CSV header immediately. No in-memory tree is built.
func NewStreamSink(w io.Writer, sep string) (*Sink, error) {
	s := &Sink{mode: SinkStream, w: w, sep: sep}
	header := fmt.Sprintf("query%sfingerprint%stanimoto\n", sep, sep)
	if _, err := w.Write([]byte(header)); err != nil {
		return nil, errors.Wrap(err, errors.CodeEngineWriteFailure, "writing CSV header failed")
	}
	return s, nil
}

// Add records one match. It is safe for concurrent use. In stream mode a
// write failure is surfaced to the caller and does not affect any
// previously-written state.
func (s *Sink) Add(queryID string, match *Fingerprint, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.mode {
	case SinkStream:
		line := fmt.Sprintf("%s%s%s%s%.7f\n", queryID, s.sep, match.ID, s.sep, score)
		if _, err := s.w.Write([]byte(line)); err != nil {
			return errors.Wrap(err, errors.CodeEngineWriteFailure, "writing CSV result row failed")
		}
		s.size++
		return nil

	case SinkSorted:
		n := &resultNode{queryID: queryID, match: match, score: score}
		s.insertSorted(n)
		s.size++
		return nil

	default: // SinkUnsorted
		n := &resultNode{queryID: queryID, match: match, score: score}
		if s.root == nil {
			s.root = n
			s.root.left = n // tail pointer trick: root.left always points at the tail.
		} else {
			tail := s.root.left
			tail.right = n
			s.root.left = n
		}
		s.size++
		return nil
	}
}

// insertSorted descends right while the stored score is >= the new score
// (ties go right), left otherwise, appending n as a leaf.
func (s *Sink) insertSorted(n *resultNode) {
	if s.root == nil {
		s.root = n
		return
	}
	cur := s.root
	for {
		if cur.score >= n.score {
			if cur.right == nil {
				cur.right = n
				return
			}
			cur = cur.right
		} else {
			if cur.left == nil {
				cur.left = n
				return
			}
			cur = cur.left
		}
	}
}

// GetSize returns the number of successful Add calls observed so far. It is
// monotonically increasing, and a value read after a worker-pool barrier is
// consistent with the number of matches collected.
func (s *Sink) GetSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Mode reports the Sink's collection strategy.
func (s *Sink) Mode() SinkMode {
	return s.mode
}

// Results drains the Sink's in-memory contents (unsorted arrival order, or
// descending score order for a sorted Sink) into a slice. It is a no-op,
// returning nil, for a streaming Sink, whose state lives entirely in the
// underlying writer.
func (s *Sink) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.mode {
	case SinkStream:
		return nil
	case SinkSorted:
		out := make([]Result, 0, s.size)
		var walk func(*resultNode)
		walk = func(n *resultNode) {
			if n == nil {
				return
			}
			walk(n.right)
			out = append(out, Result{QueryID: n.queryID, MatchID: n.match.ID, Match: n.match, Score: n.score})
			walk(n.left)
		}
		walk(s.root)
		return out
	default: // SinkUnsorted
		out := make([]Result, 0, s.size)
		for n := s.root; n != nil; n = n.right {
			out = append(out, Result{QueryID: n.queryID, MatchID: n.match.ID, Match: n.match, Score: n.score})
		}
		return out
	}
}
