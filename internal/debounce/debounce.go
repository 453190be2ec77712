// Package debounce delays propagating a rapidly changing value until it has
// been stable for a configured interval, so a search box does not turn every
// keystroke into a metadata lookup.
package debounce

import (
	"sync"
	"time"
)

type (
	// Emission is a settled value together with the generation of the Set call
	// that produced it. Consumers firing a lookup per emission should apply the
	// response only if Latest still reports its generation as current, which
	// keeps a slow early response from overwriting a faster later one.
	Emission[T any] struct {
		Generation uint64
		Value      T
	}

	Debouncer[T any] struct {
		mu       sync.Mutex
		interval time.Duration
		timer    *time.Timer
		gen      uint64
		out      chan Emission[T]
		stopped  bool
	}
)

func New[T any](interval time.Duration) *Debouncer[T] {
	return &Debouncer[T]{
		interval: interval,
		out:      make(chan Emission[T], 1),
	}
}

// Set replaces the pending value. Any earlier delay that has not fired yet is
// canceled; only the most recent value is ever emitted.
func (d *Debouncer[T]) Set(value T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.gen++
	gen := d.gen

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.emit(Emission[T]{Generation: gen, Value: value})
	})
}

// C delivers settled values. A newer emission replaces an unconsumed older
// one, the channel never backs up.
func (d *Debouncer[T]) C() <-chan Emission[T] {
	return d.out
}

// Latest reports whether gen is still the most recent generation handed out.
func (d *Debouncer[T]) Latest(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gen == d.gen
}

// Stop cancels any pending emission. Set calls after Stop are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer[T]) emit(e Emission[T]) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || e.Generation != d.gen {
		return
	}

	select {
	case <-d.out:
	default:
	}
	d.out <- e
}
