package cli

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/rprtr258/block-cpu/internal/blocker"
	"github.com/rprtr258/block-cpu/internal/core"
	"github.com/rprtr258/block-cpu/internal/errors"
	"github.com/rprtr258/block-cpu/internal/linuxprocess"
)

type signalError struct {
	sig os.Signal
}

func (e signalError) Error() string {
	return "received signal " + e.sig.String()
}

// withInterrupt cancels context on first SIGINT or SIGTERM. Returned func
// releases signal handling and reports the caught signal, if any.
func withInterrupt(ctx context.Context) (context.Context, func() os.Signal) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancelCause(ctx)
	go func() {
		select {
		case sig := <-sigCh:
			log.Debug().Stringer("signal", sig).Msg("caught signal")
			cancel(signalError{sig: sig})
		case <-ctx.Done():
		}
	}()

	return ctx, func() os.Signal {
		signal.Stop(sigCh)
		cancel(nil)

		var sigErr signalError
		if stdErrors.As(context.Cause(ctx), &sigErr) {
			return sigErr.sig
		}
		return nil
	}
}

// reraise kills the process with sig using default disposition, so exit
// status is the one of process killed by signal
func reraise(sig os.Signal) {
	signal.Reset(sig)

	s, ok := sig.(syscall.Signal)
	if !ok {
		os.Exit(1)
	}

	if err := unix.Kill(os.Getpid(), s); err != nil {
		log.Error().Err(err).Stringer("signal", sig).Msg("re-raise signal")
	}
	// delivery is asynchronous
	time.Sleep(time.Second)
	os.Exit(128 + int(s))
}

func implBlock(ctx context.Context, out io.Writer, config core.Config) error {
	if cores, err := linuxprocess.LogicalCores(); err != nil {
		log.Warn().Err(err).Msg("unknown number of cpus")
	} else if int(config.NumCPU) > cores {
		log.Warn().
			Stringer("num_cpu", config.NumCPU).
			Int("cores", cores).
			Msg("more workers than logical cpus, workers will share cores")
	}

	maxThreads := config.MaxThreads
	if maxThreads == 0 {
		// coordinator raises GOMAXPROCS to count+1
		maxThreads = linuxprocess.ThreadBudget(max(runtime.GOMAXPROCS(0), int(config.NumCPU)+1))
	}
	log.Debug().Int("max_threads", maxThreads).Msg("thread budget")

	ctx, release := withInterrupt(ctx)

	fmt.Fprintf(out, "Blocking %s cpu with an infinite loop\n", config.NumCPU)
	errRun := blocker.New(blocker.Config{
		Spawner: blocker.NewThreadSpawner(maxThreads),
		Logger:  log.Logger.With().Str("component", "coordinator").Logger(),
		OnStarted: func(int) {
			fmt.Fprintln(out, "waiting forever. Press CTRL-C to stop")
		},
	}).Run(ctx, config.NumCPU)

	if sig := release(); sig != nil {
		log.Info().Stringer("signal", sig).Msg("all workers stopped, exiting")
		reraise(sig)
	}

	if errRun != nil {
		return errors.Wrapf(errRun, "block %s cpus", config.NumCPU)
	}
	return nil
}
