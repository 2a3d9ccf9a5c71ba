package poller

// cumulativeCounter reconciles a monotonically increasing upstream counter
// into per-interval deltas. Baselines live in process memory only, so the
// first interval after a monitor restart reports the full cumulative value.
type cumulativeCounter struct {
	last uint64
}

// Delta returns the non-negative increment since the previous observation and
// stores the new baseline. A value below the baseline means the upstream
// counter reset; the delta for that interval is zero.
func (c *cumulativeCounter) Delta(current uint64) uint64 {
	prev := c.last
	c.last = current
	if current < prev {
		return 0
	}
	return current - prev
}
