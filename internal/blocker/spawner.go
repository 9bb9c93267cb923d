package blocker

import (
	"runtime"
	"sync/atomic"

	"github.com/rprtr258/block-cpu/internal/errors"
)

var ErrThreadBudget = errors.New("thread budget exhausted")

// Spawner starts fn as independently scheduled unit of execution.
type Spawner interface {
	Spawn(fn func()) error
}

// ThreadSpawner starts each fn on its own goroutine locked to os thread.
// Thread is never unlocked, so it is destroyed when fn returns.
type ThreadSpawner struct {
	limit int64
	live  atomic.Int64
}

// NewThreadSpawner creates spawner allowing at most limit live units,
// zero or negative limit means no limit.
func NewThreadSpawner(limit int) *ThreadSpawner {
	return &ThreadSpawner{
		limit: int64(limit),
		live:  atomic.Int64{},
	}
}

func (s *ThreadSpawner) Spawn(fn func()) error {
	if live := s.live.Add(1); s.limit > 0 && live > s.limit {
		s.live.Add(-1)
		return errors.Wrapf(ErrThreadBudget, "limit=%d", s.limit)
	}

	go func() {
		defer s.live.Add(-1)
		runtime.LockOSThread()
		fn()
	}()
	return nil
}

// Live returns number of units started and not yet finished.
func (s *ThreadSpawner) Live() int {
	return int(s.live.Load())
}
