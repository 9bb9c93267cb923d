package linuxprocess

import (
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/shoenig/test/must"
	"github.com/shoenig/test/skip"

	"github.com/rprtr258/block-cpu/internal/errors"
)

func TestLogicalCores(t *testing.T) {
	n, err := LogicalCores()
	must.NoError(t, err)
	must.Positive(t, n)
}

func TestSelfThreads(t *testing.T) {
	skip.NotOperatingSystem(t, "linux", "darwin")

	n, err := SelfThreads()
	must.NoError(t, err)
	must.Positive(t, n)
}

func TestThreadBudget(t *testing.T) {
	budget := ThreadBudget(2)
	must.Positive(t, budget)
	must.LessEq(t, maxGoThreads(), budget)
}

func TestUserThreads(t *testing.T) {
	skip.NotOperatingSystem(t, "linux")

	n, err := UserThreads(os.Getuid())
	must.NoError(t, err)
	must.Positive(t, n)
}

func fixedLimits(self, user, nproc int, exempt bool) limits {
	return limits{
		goThreads:    func() int { return 10_000 },
		selfThreads:  func() (int, error) { return self, nil },
		userThreads:  func() (int, error) { return user, nil },
		processLimit: func() (int, bool) { return nproc, nproc > 0 },
		exempt:       func() bool { return exempt },
	}
}

func TestThreadBudgetLimits(t *testing.T) {
	for name, test := range map[string]struct {
		limits limits
		procs  int
		want   int
	}{
		"no rlimit": {
			limits: fixedLimits(6, 6, 0, false),
			procs:  2,
			want:   10_000 - 6 - 2 - _reservedThreads,
		},
		"rlimit counts own threads and reserve": {
			limits: fixedLimits(6, 6, 100, false),
			procs:  9,
			want:   100 - 6 - 9 - _reservedThreads,
		},
		"rlimit counts other processes of user": {
			limits: fixedLimits(6, 40, 100, false),
			procs:  9,
			want:   100 - 40 - 9 - _reservedThreads,
		},
		"rlimit nearly exhausted": {
			limits: fixedLimits(5, 5, 20, false),
			procs:  17,
			want:   1,
		},
		"privileged process ignores rlimit": {
			limits: fixedLimits(6, 6, 8, true),
			procs:  11,
			want:   10_000 - 6 - 11 - _reservedThreads,
		},
	} {
		t.Run(name, func(t *testing.T) {
			must.EqOp(t, test.want, test.limits.threadBudget(test.procs))
		})
	}
}

func TestThreadBudgetUserThreadsUnknown(t *testing.T) {
	l := fixedLimits(6, 0, 100, false)
	l.userThreads = func() (int, error) { return 0, errors.New("no procfs") }
	must.EqOp(t, 100-6-3-_reservedThreads, l.threadBudget(3))
}

func TestMaxGoThreadsRestoresLimit(t *testing.T) {
	first := maxGoThreads()
	must.EqOp(t, first, maxGoThreads())
}

func TestCPUTimeGrows(t *testing.T) {
	skip.NotOperatingSystem(t, "linux", "darwin")

	before, err := CPUTime()
	must.NoError(t, err)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	x := uint64(1)
	for deadline := time.Now().Add(200 * time.Millisecond); time.Now().Before(deadline); {
		x = x*6364136223846793005 + 1442695040888963407
	}
	t.Log("spin result", x)

	after, err := CPUTime()
	must.NoError(t, err)
	must.Greater(t, before, after)
}
