package mocks

import (
	"sync"

	"github.com/mcoot/dicemeister/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing
type MockRandom struct {
	mu sync.Mutex

	// IntnResults is a queue of results to return from Intn
	IntnResults []int
	intnIndex   int

	// RollResults is a queue of results to return from Between
	RollResults []int
	rollIndex   int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn returns the next queued result, or 0 if none remaining
func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.intnIndex >= len(r.IntnResults) {
		return 0
	}
	result := r.IntnResults[r.intnIndex]
	r.intnIndex++
	return result
}

// Between returns the next queued roll, or lo if none remaining
func (r *MockRandom) Between(lo, hi int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rollIndex >= len(r.RollResults) {
		return lo
	}
	result := r.RollResults[r.rollIndex]
	r.rollIndex++
	return result
}

// QueueIntn adds values to the Intn result queue
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.IntnResults = append(r.IntnResults, values...)
}

// QueueRolls adds values to the Between result queue
func (r *MockRandom) QueueRolls(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RollResults = append(r.RollResults, values...)
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.IntnResults = nil
	r.intnIndex = 0
	r.RollResults = nil
	r.rollIndex = 0
}
