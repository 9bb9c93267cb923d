package cli

import (
	"github.com/rprtr258/fun"
	"github.com/spf13/cobra"

	"github.com/rprtr258/block-cpu/internal/config"
	"github.com/rprtr258/block-cpu/internal/core"
	"github.com/rprtr258/block-cpu/internal/errors"
)

// changed returns value only if flag was set explicitly
func changed[T any](cmd *cobra.Command, name string, value T) fun.Option[T] {
	if !cmd.Flags().Changed(name) {
		return fun.Zero[fun.Option[T]]()
	}
	return fun.Valid(value)
}

var _app = func() *cobra.Command {
	var (
		numCPU     uint8
		maxThreads int
		debug      bool
		configFile string
		envFile    string
	)
	cmd := &cobra.Command{
		Use:           core.AppName,
		Short:         "block cpu cores with infinite busy loops until interrupted",
		Version:       core.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New(config.Sources{
				ConfigFile: configFile,
				EnvFile:    envFile,
				Flags: config.Overrides{
					NumCPU:     changed(cmd, "num-cpu", core.WorkerCount(numCPU)),
					MaxThreads: changed(cmd, "max-threads", maxThreads),
					Debug:      changed(cmd, "debug", debug),
				},
			})
			if err != nil {
				return errors.Wrap(err, "load config")
			}

			return implBlock(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().Uint8VarP(&numCPU, "num-cpu", "n", uint8(core.DefaultConfig.NumCPU), "number of cpus to block")
	cmd.Flags().IntVar(&maxThreads, "max-threads", core.DefaultConfig.MaxThreads, "limit of worker threads, 0 to detect from system limits")
	cmd.Flags().BoolVar(&debug, "debug", core.DefaultConfig.Debug, "enable debug logging")
	cmd.Flags().StringVarP(&configFile, "config", "f", "", "jsonnet config file to use")
	cmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file with "+core.EnvNumCPU+" and friends")
	cmd.AddCommand(_cmdVersion)
	return cmd
}()

func Run(argv []string) error {
	_app.SetArgs(argv[1:])
	return _app.Execute()
}
