// Package seed keeps a short history of recently used random seeds.
package seed

import (
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/kiesman99/goat/pkg/tile"
)

const (
	// MaxSeed is the largest seed handed out or accepted
	MaxSeed = 1125899906842624
	// Random asks Next for a fresh seed
	Random = -1
	// HistorySize is the number of remembered seeds
	HistorySize = 4
)

// History remembers the last seeds a caller used. The zero value is not
// usable, create one with NewHistory. Safe for concurrent use.
type History struct {
	mu      sync.Mutex
	rng     *rand.Rand
	seeds   []int64
	current int64
}

// NewHistory returns a history filled with zeros. A nil src draws seeds
// from the global generator.
func NewHistory(src rand.Source) *History {
	h := &History{
		seeds:   make([]int64, HistorySize),
		current: Random,
	}
	if src != nil {
		h.rng = rand.New(src)
	}
	return h
}

// Next picks the seed for the next run. A seed already in the history is
// reused as is. Otherwise a fresh seed is drawn when generateNew is set or
// seed is Random, and seed itself is kept in all other cases. Seeds not yet
// in the history are pushed to its front.
func (h *History) Next(seed int64, generateNew bool) (int64, error) {
	if err := tile.CheckRange("seed", seed, Random, MaxSeed); err != nil {
		return 0, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case slices.Contains(h.seeds, seed):
		h.current = seed
	case generateNew || seed == Random:
		h.current = h.draw()
	default:
		h.current = seed
	}

	if !slices.Contains(h.seeds, h.current) {
		h.seeds = append([]int64{h.current}, h.seeds[:HistorySize-1]...)
	}
	return h.current, nil
}

func (h *History) draw() int64 {
	if h.rng != nil {
		return h.rng.Int64N(MaxSeed + 1)
	}
	return rand.Int64N(MaxSeed + 1)
}

// Current returns the seed chosen by the last call to Next, or Random
func (h *History) Current() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Seeds returns the history, most recent first
func (h *History) Seeds() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.seeds)
}
