package poller

import (
	"sort"
)

const (
	// seenLimit bounds the in-memory set of already-evaluated sequences.
	seenLimit = 1000
	// seenEvict is how many of the numerically smallest members are dropped
	// once the limit is exceeded. Eviction only affects re-check suppression;
	// persisted validation records are untouched.
	seenEvict = 500
)

// gapTracker tracks which ledger sequences have already had their validation
// outcome evaluated, so sequences that elapse between polls are each checked
// exactly once. Sequences whose evaluation failed to persist are carried in a
// retry set until a later cycle succeeds.
type gapTracker struct {
	seen  map[int64]struct{}
	retry map[int64]struct{}
}

func newGapTracker() *gapTracker {
	return &gapTracker{
		seen:  make(map[int64]struct{}),
		retry: make(map[int64]struct{}),
	}
}

// pending returns, in ascending order, every positive sequence strictly
// between prevSeq and currentSeq that has not been evaluated yet, plus any
// sequences awaiting retry. A rollback (currentSeq <= prevSeq) contributes an
// empty range.
func (g *gapTracker) pending(prevSeq, currentSeq int64) []int64 {
	seqs := make([]int64, 0, len(g.retry))
	for seq := range g.retry {
		seqs = append(seqs, seq)
	}

	for seq := prevSeq + 1; seq < currentSeq; seq++ {
		if seq <= 0 {
			continue
		}
		if _, ok := g.seen[seq]; ok {
			continue
		}
		if _, ok := g.retry[seq]; ok {
			continue
		}
		seqs = append(seqs, seq)
	}

	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	if len(seqs) == 0 {
		return nil
	}
	return seqs
}

// markSeen records a sequence as evaluated, pruning the set if it has grown
// past its limit.
func (g *gapTracker) markSeen(seq int64) {
	delete(g.retry, seq)
	g.seen[seq] = struct{}{}
	if len(g.seen) > seenLimit {
		g.seen = pruneSmallest(g.seen)
	}
}

// markFailed queues a sequence for re-evaluation on a later cycle.
func (g *gapTracker) markFailed(seq int64) {
	g.retry[seq] = struct{}{}
	if len(g.retry) > seenLimit {
		g.retry = pruneSmallest(g.retry)
	}
}

func pruneSmallest(set map[int64]struct{}) map[int64]struct{} {
	keys := make([]int64, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys[:seenEvict] {
		delete(set, k)
	}
	return set
}

func (g *gapTracker) seenCount() int {
	return len(g.seen)
}
