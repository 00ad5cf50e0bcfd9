package atomic_float

import (
	"math"
	"sync/atomic"
)

// AtomicFloat64 is a float64 supporting lock-free reads and updates, stored as its IEEE-754 bits.
// The zero value holds 0.0 and is ready to use.
type AtomicFloat64 struct {
	bits atomic.Uint64
}

// NewAtomicFloat64 returns an AtomicFloat64 holding val.
func NewAtomicFloat64(val float64) *AtomicFloat64 {
	af := &AtomicFloat64{}
	af.bits.Store(math.Float64bits(val))
	return af
}

// AtomicRead returns the current value.
func (af *AtomicFloat64) AtomicRead() float64 {
	return math.Float64frombits(af.bits.Load())
}

// TryAdd attempts a single compare-and-swap of old+addend. If another writer got in
// first the value is left unchanged and succeeded is false, so the caller can decide
// whether to retry, recalculate or drop the update.
func (af *AtomicFloat64) TryAdd(addend float64) (newVal float64, succeeded bool) {
	old := af.bits.Load()
	newVal = math.Float64frombits(old) + addend
	succeeded = af.bits.CompareAndSwap(old, math.Float64bits(newVal))
	return
}

// AtomicAdd adds addend, retrying until no concurrent writer intervenes, and returns the new value.
func (af *AtomicFloat64) AtomicAdd(addend float64) float64 {
	for {
		if newVal, ok := af.TryAdd(addend); ok {
			return newVal
		}
	}
}
