package blocker

import (
	"sync/atomic"

	"github.com/rprtr258/block-cpu/internal/errors"
)

const (
	_spinBase  = 1
	_spinReset = 1_000
)

// Spin occupies current thread until stop is set. It never blocks, sleeps or
// yields: stop is only checked with atomic load between rounds. Returns number
// of completed rounds.
func Spin(stop *atomic.Bool) uint64 {
	var rounds uint64
	counter := _spinBase
	for !stop.Load() {
		// one round is counting past reset mark
		for counter <= _spinReset {
			counter++
		}
		counter = 0
		rounds++
	}
	return rounds
}

// worker is a handle of spawned unit, valid to read after done is closed
type worker struct {
	id     int
	done   chan struct{}
	rounds uint64
	err    error
}

func newWorker(id int) *worker {
	return &worker{
		id:     id,
		done:   make(chan struct{}),
		rounds: 0,
		err:    nil,
	}
}

// run executes body on current goroutine, recording panic as worker error
func (w *worker) run(body func(*atomic.Bool) uint64, stop *atomic.Bool) {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			w.err = errors.Newf("worker panicked: %v", r)
		}
	}()

	w.rounds = body(stop)
}

type workerSet []*worker
