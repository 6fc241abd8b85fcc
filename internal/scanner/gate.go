package scanner

import "sync"

// ConfidenceGate accepts a code only after it was read Threshold times in a row.
// Any other code in between resets the progress.
type ConfidenceGate struct {
	threshold int

	mu     sync.Mutex
	counts map[string]int
}

func NewConfidenceGate(threshold int) *ConfidenceGate {
	return &ConfidenceGate{
		threshold: max(threshold, 1),
		counts:    make(map[string]int),
	}
}

// Observe records one read of code and reports whether it is accepted now.
func (g *ConfidenceGate) Observe(code string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for k := range g.counts {
		if k != code {
			delete(g.counts, k)
		}
	}
	g.counts[code]++
	if g.counts[code] >= g.threshold {
		g.counts[code] = 0
		return true
	}
	return false
}

func (g *ConfidenceGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.counts)
}
