package linuxprocess

import (
	"math"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// _reservedThreads are os threads go runtime may start besides ones running
// goroutines: sysmon, template thread, threads blocked in syscalls.
const _reservedThreads = 4

// maxGoThreads returns the go runtime limit on os threads, the whole process
// crashes when it is exceeded. Lowering the limit below current thread count
// crashes too, so it is probed by raising.
func maxGoThreads() int {
	limit := debug.SetMaxThreads(math.MaxInt32)
	debug.SetMaxThreads(limit)
	return limit
}

// ProcessLimit returns soft RLIMIT_NPROC, which limits number of tasks
// (processes and threads) of the real user on linux. Returns false if there
// is no limit.
func ProcessLimit() (int, bool) {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NPROC, &rlim); err != nil {
		log.Debug().Err(err).Msg("get RLIMIT_NPROC")
		return 0, false
	}

	if rlim.Cur == unix.RLIM_INFINITY || rlim.Cur > math.MaxInt32 {
		return 0, false
	}
	return int(rlim.Cur), true //nolint:gosec // checked above
}

type limits struct {
	goThreads    func() int
	selfThreads  func() (int, error)
	userThreads  func() (int, error)
	processLimit func() (int, bool)
	// exempt reports whether RLIMIT_NPROC is not enforced for the process
	exempt func() bool
}

var _systemLimits = limits{
	goThreads:    maxGoThreads,
	selfThreads:  SelfThreads,
	userThreads:  func() (int, error) { return UserThreads(os.Getuid()) },
	processLimit: ProcessLimit,
	exempt:       rlimitExempt,
}

func (l limits) threadBudget(procs int) int {
	reserve := procs + _reservedThreads

	self, err := l.selfThreads()
	if err != nil {
		log.Debug().Err(err).Msg("count own threads")
		self = 0
	}
	budget := l.goThreads() - self - reserve

	limit, ok := l.processLimit()
	switch {
	case !ok:
	case l.exempt():
		log.Debug().Int("limit", limit).Msg("RLIMIT_NPROC is not enforced for privileged process")
	default:
		used, err := l.userThreads()
		if err != nil {
			log.Debug().Err(err).Msg("count user threads, using own threads only")
			used = self
		}
		budget = min(budget, limit-max(used, self)-reserve)
	}

	return max(budget, 1)
}

// ThreadBudget returns how many more os threads can be started for workers
// without hitting go runtime or os limits, given that go runtime runs with
// procs Ps. Always at least 1.
func ThreadBudget(procs int) int {
	return _systemLimits.threadBudget(procs)
}
