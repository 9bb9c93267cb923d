package linuxprocess

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/rprtr258/block-cpu/internal/errors"
)

func self() (*process.Process, error) {
	p, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits int32
	if err != nil {
		return nil, errors.Wrapf(err, "open process pid=%d", os.Getpid())
	}
	return p, nil
}

// LogicalCores returns number of logical cpus on the host.
func LogicalCores() (int, error) {
	n, err := cpu.Counts(true)
	if err != nil {
		return 0, errors.Wrap(err, "count logical cpus")
	}
	return n, nil
}

// SelfThreads returns number of os threads of the current process.
func SelfThreads() (int, error) {
	p, err := self()
	if err != nil {
		return 0, err
	}

	n, err := p.NumThreads()
	if err != nil {
		return 0, errors.Wrap(err, "get threads count")
	}
	return int(n), nil
}

// UserThreads returns number of os threads of all processes of the user
// with given real uid. Processes exiting while being counted are skipped.
func UserThreads(uid int) (int, error) {
	procs, err := process.Processes()
	if err != nil {
		return 0, errors.Wrap(err, "list processes")
	}

	total := 0
	for _, p := range procs {
		uids, err := p.Uids()
		if err != nil || len(uids) == 0 || int(uids[0]) != uid {
			continue
		}

		n, err := p.NumThreads()
		if err != nil {
			continue
		}
		total += int(n)
	}
	return total, nil
}

// CPUTime returns user plus system cpu time consumed by the current process.
func CPUTime() (time.Duration, error) {
	p, err := self()
	if err != nil {
		return 0, err
	}

	times, err := p.Times()
	if err != nil {
		return 0, errors.Wrap(err, "get cpu times")
	}
	return time.Duration((times.User + times.System) * float64(time.Second)), nil
}
