package forms

// AdaptiveBlockSize returns a test-phase sub-block size for a given
// parameter magnitude: larger parameters mean exponentially more expensive
// candidates, so sub-blocks shrink to keep checkpoint intervals frequent.
func AdaptiveBlockSize(param uint64) uint64 {
	switch {
	case param <= 1_000:
		return 10_000
	case param <= 10_000:
		return 7_500
	case param <= 50_000:
		return 1_500
	case param <= 200_000:
		return 350
	default:
		return 75
	}
}
