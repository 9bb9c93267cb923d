// Package blocker keeps requested number of cpu cores busy until interrupted.
package blocker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/rprtr258/block-cpu/internal/core"
)

// SpawnError is returned when not all requested workers could be started.
// Started workers are already stopped and joined when it is returned.
type SpawnError struct {
	Started   int
	Requested int
	Err       error
}

func (e *SpawnError) Error() string {
	msg := fmt.Sprintf(
		"spawn worker %d of %d, %d workers were started before failure",
		e.Started+1, e.Requested, e.Started,
	)
	if e.Err == nil {
		return msg
	}
	return msg + ": " + e.Err.Error()
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// _procs tracks GOMAXPROCS raised for workers of all running coordinators.
var _procs struct {
	sync.Mutex
	workers int
	saved   int
}

// reserveProcs raises GOMAXPROCS so that each of workers, together with
// workers of other running coordinators, holds its own P, and one more P is
// left for everything else. Returned func releases reservation, GOMAXPROCS is
// restored when the last reservation is released.
func reserveProcs(workers int) func() {
	_procs.Lock()
	defer _procs.Unlock()

	if _procs.workers == 0 {
		_procs.saved = runtime.GOMAXPROCS(0)
	}
	_procs.workers += workers
	if want := _procs.workers + 1; runtime.GOMAXPROCS(0) < want {
		runtime.GOMAXPROCS(want)
	}

	return func() {
		_procs.Lock()
		defer _procs.Unlock()

		_procs.workers -= workers
		if _procs.workers == 0 {
			runtime.GOMAXPROCS(_procs.saved)
		}
	}
}

type Config struct {
	Spawner Spawner
	Logger  zerolog.Logger
	// OnStarted is called once all workers are spawned, before blocking
	OnStarted func(workers int)

	body func(*atomic.Bool) uint64
}

type Coordinator struct {
	spawner   Spawner
	l         zerolog.Logger
	onStarted func(int)
	body      func(*atomic.Bool) uint64
}

func New(cfg Config) *Coordinator {
	c := &Coordinator{
		spawner:   cfg.Spawner,
		l:         cfg.Logger,
		onStarted: cfg.OnStarted,
		body:      cfg.body,
	}
	if c.spawner == nil {
		c.spawner = NewThreadSpawner(0)
	}
	if c.onStarted == nil {
		c.onStarted = func(int) {}
	}
	if c.body == nil {
		c.body = Spin
	}
	return c
}

// Run spawns count workers and blocks until all of them are finished. Workers
// are finished only when ctx is canceled, so with nonzero count Run returns
// only after cancellation or on spawn failure.
func (c *Coordinator) Run(ctx context.Context, count core.WorkerCount) error {
	if count == 0 {
		c.l.Debug().Msg("no workers requested")
		return nil
	}

	defer reserveProcs(int(count))()

	var stop atomic.Bool
	workers := make(workerSet, 0, count)
	for id := range int(count) {
		w := newWorker(id)
		if err := c.spawner.Spawn(func() { w.run(c.body, &stop) }); err != nil {
			c.l.Error().
				Err(err).
				Int("worker", id).
				Int("started", len(workers)).
				Stringer("requested", count).
				Msg("spawn worker, stopping started workers")
			stop.Store(true)
			c.join(workers)
			return &SpawnError{
				Started:   len(workers),
				Requested: int(count),
				Err:       err,
			}
		}

		workers = append(workers, w)
		c.l.Debug().Int("worker", id).Msg("worker started")
	}
	c.l.Info().Int("workers", len(workers)).Msg("all workers started")

	stopOnCancel := context.AfterFunc(ctx, func() {
		c.l.Info().Msg("interrupted, stopping workers")
		stop.Store(true)
	})
	defer stopOnCancel()

	c.onStarted(len(workers))
	c.join(workers)
	return nil
}

// join waits for every worker. Failed workers are reported and skipped.
func (c *Coordinator) join(workers workerSet) {
	failed := 0
	var rounds uint64
	for _, w := range workers {
		<-w.done
		if w.err != nil {
			failed++
			c.l.Warn().
				Err(w.err).
				Int("worker", w.id).
				Msg("worker failed")
			continue
		}

		rounds += w.rounds
	}

	c.l.Info().
		Int("workers", len(workers)).
		Int("failed", failed).
		Msg("workers stopped")
	c.l.Debug().Uint64("rounds", rounds).Send()
}
