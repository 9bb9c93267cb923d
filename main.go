package main

import (
	stdErrors "errors"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rprtr258/block-cpu/internal/blocker"
	"github.com/rprtr258/block-cpu/internal/cli"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}) //nolint:exhaustruct // not needed

	if errRun := cli.Run(os.Args); errRun != nil {
		log.Fatal().
			Func(func(e *zerolog.Event) {
				var spawnErr *blocker.SpawnError
				if stdErrors.As(errRun, &spawnErr) {
					e.
						Int("started", spawnErr.Started).
						Int("requested", spawnErr.Requested)
				}
			}).
			Err(errRun).
			Msg("app exited abnormally")
	}
}
