package cli

import (
	"bytes"
	"context"
	stdErrors "errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/shoenig/test/must"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/rprtr258/block-cpu/internal/blocker"
	"github.com/rprtr258/block-cpu/internal/core"
)

func TestImplBlockZero(t *testing.T) {
	var out bytes.Buffer
	must.NoError(t, implBlock(context.Background(), &out, core.Config{NumCPU: 0, MaxThreads: 0, Debug: false}))
	must.EqOp(t, "Blocking 0 cpu with an infinite loop\n", out.String())
}

func TestImplBlockSpawnFailure(t *testing.T) {
	var out bytes.Buffer
	err := implBlock(context.Background(), &out, core.Config{NumCPU: 5, MaxThreads: 2, Debug: false})

	var spawnErr *blocker.SpawnError
	must.True(t, stdErrors.As(err, &spawnErr))
	must.EqOp(t, 2, spawnErr.Started)
	must.EqOp(t, 5, spawnErr.Requested)
	must.ErrorIs(t, err, blocker.ErrThreadBudget)
	must.StrContains(t, err.Error(), "block 5 cpus")
	must.StrNotContains(t, out.String(), "waiting forever")
}

func TestWithInterruptWithoutSignal(t *testing.T) {
	ctx, release := withInterrupt(context.Background())
	must.NoError(t, ctx.Err())
	must.Nil(t, release())
	must.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestWithInterruptCatchesSignal(t *testing.T) {
	ctx, release := withInterrupt(context.Background())
	must.NoError(t, unix.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context is not canceled after SIGTERM")
	}
	must.EqOp[os.Signal](t, syscall.SIGTERM, release())
}

func TestChanged(t *testing.T) {
	var n, m int
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().IntVar(&n, "n", 1, "")
	cmd.Flags().IntVar(&m, "m", 1, "")
	must.NoError(t, cmd.Flags().Parse([]string{"--n", "3"}))

	got := changed(cmd, "n", n)
	must.True(t, got.Valid)
	must.EqOp(t, 3, got.Value)
	must.False(t, changed(cmd, "m", m).Valid)
}
