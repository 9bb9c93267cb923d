package config

import (
	"bytes"
	"encoding/json"
	stdErrors "errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/go-jsonnet"
	"github.com/joho/godotenv"
	"github.com/rprtr258/fun"
	"github.com/rprtr258/scuf"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/term"

	"github.com/rprtr258/block-cpu/internal/core"
	"github.com/rprtr258/block-cpu/internal/errors"
	"github.com/rprtr258/block-cpu/internal/linuxprocess"
)

var ErrInvalid = stdErrors.New("invalid config")

// Overrides are values set explicitly on command line, they win over everything else.
type Overrides struct {
	NumCPU     fun.Option[core.WorkerCount]
	MaxThreads fun.Option[int]
	Debug      fun.Option[bool]
}

type Sources struct {
	// ConfigFile - jsonnet config, if empty, config from xdg config dir is used if exists
	ConfigFile string
	// EnvFile - dotenv file with BLOCK_CPU_* variables, real environment wins over it
	EnvFile string
	Flags   Overrides
}

type Loader struct {
	fs            afero.Fs
	lookupEnv     func(string) (string, bool)
	logicalCores  func() (int, error)
	defaultConfig func() (string, bool)
}

func searchXDGConfig() (string, bool) {
	filename, err := xdg.SearchConfigFile(filepath.Join(core.AppName, "config.jsonnet"))
	if err != nil {
		return "", false
	}
	return filename, true
}

func NewLoader() Loader {
	return Loader{
		fs:            afero.NewOsFs(),
		lookupEnv:     os.LookupEnv,
		logicalCores:  linuxprocess.LogicalCores,
		defaultConfig: searchXDGConfig,
	}
}

type configDTO struct {
	NumCPU     *int  `json:"num_cpu"`
	MaxThreads *int  `json:"max_threads"`
	Debug      *bool `json:"debug"`
}

func (l Loader) newVM() *jsonnet.VM {
	cores, err := l.logicalCores()
	if err != nil {
		log.Warn().Err(err).Msg("using go runtime cpu count")
		cores = runtime.NumCPU()
	}

	vm := jsonnet.MakeVM()
	vm.ExtCode("ncpu", strconv.Itoa(cores))
	return vm
}

func (l Loader) readConfigFile(config *core.Config, filename string) error {
	data, err := afero.ReadFile(l.fs, filename)
	if err != nil {
		return errors.Wrapf(err, "read config file %s", filename)
	}

	jsonText, err := l.newVM().EvaluateAnonymousSnippet(filename, string(data))
	if err != nil {
		return errors.Wrapf(err, "evaluate jsonnet file %s", filename)
	}

	var dto configDTO
	decoder := json.NewDecoder(strings.NewReader(jsonText))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&dto); err != nil {
		return errors.Wrapf(stdErrors.Join(ErrInvalid, err), "unmarshal config %s", filename)
	}

	if dto.NumCPU != nil {
		if *dto.NumCPU < 0 || *dto.NumCPU > int(core.MaxWorkerCount) {
			return errors.Wrapf(ErrInvalid, "num_cpu must be in [0, %d], got %d", core.MaxWorkerCount, *dto.NumCPU)
		}
		config.NumCPU = core.WorkerCount(*dto.NumCPU)
	}
	if dto.MaxThreads != nil {
		config.MaxThreads = *dto.MaxThreads
	}
	if dto.Debug != nil {
		config.Debug = *dto.Debug
	}
	return nil
}

func (l Loader) readEnv(config *core.Config, envFile string) error {
	fileEnv := map[string]string{}
	if envFile != "" {
		data, err := afero.ReadFile(l.fs, envFile)
		if err != nil {
			return errors.Wrapf(err, "read env file %s", envFile)
		}

		fileEnv, err = godotenv.Parse(bytes.NewReader(data))
		if err != nil {
			return errors.Wrapf(err, "parse env file %s", envFile)
		}
	}

	lookup := func(name string) (string, bool) {
		if v, ok := l.lookupEnv(name); ok {
			return v, true
		}
		v, ok := fileEnv[name]
		return v, ok
	}

	var errNumCPU, errMaxThreads, errDebug error
	if v, ok := lookup(core.EnvNumCPU); ok {
		if n, err := core.ParseWorkerCount(v); err != nil {
			errNumCPU = errors.Wrapf(err, "parse %s=%q", core.EnvNumCPU, v)
		} else {
			config.NumCPU = n
		}
	}
	if v, ok := lookup(core.EnvMaxThreads); ok {
		if n, err := strconv.Atoi(v); err != nil {
			errMaxThreads = errors.Wrapf(err, "parse %s=%q", core.EnvMaxThreads, v)
		} else {
			config.MaxThreads = n
		}
	}
	if v, ok := lookup(core.EnvDebug); ok {
		if debug, err := strconv.ParseBool(v); err != nil {
			errDebug = errors.Wrapf(err, "parse %s=%q", core.EnvDebug, v)
		} else {
			config.Debug = debug
		}
	}

	if err := errors.Combine(errNumCPU, errMaxThreads, errDebug); err != nil {
		return stdErrors.Join(ErrInvalid, err)
	}
	return nil
}

// Load resolves config from defaults, config file, environment and flags, in that order.
func (l Loader) Load(src Sources) (core.Config, error) {
	config := core.DefaultConfig

	filename := src.ConfigFile
	if filename == "" {
		filename, _ = l.defaultConfig()
	}
	if filename != "" {
		log.Debug().Str("file", filename).Msg("reading config file")
		if err := l.readConfigFile(&config, filename); err != nil {
			return fun.Zero[core.Config](), err
		}
	}

	if err := l.readEnv(&config, src.EnvFile); err != nil {
		return fun.Zero[core.Config](), errors.Wrap(err, "environment")
	}

	if src.Flags.NumCPU.Valid {
		config.NumCPU = src.Flags.NumCPU.Value
	}
	if src.Flags.MaxThreads.Valid {
		config.MaxThreads = src.Flags.MaxThreads.Value
	}
	if src.Flags.Debug.Valid {
		config.Debug = src.Flags.Debug.Value
	}

	if config.MaxThreads < 0 {
		return fun.Zero[core.Config](), errors.Wrapf(ErrInvalid, "max_threads must not be negative, got %d", config.MaxThreads)
	}

	return config, nil
}

func setupLogger(config core.Config) {
	level := fun.IF(config.Debug, zerolog.DebugLevel, zerolog.InfoLevel)
	noColor := !term.IsTerminal(int(os.Stderr.Fd())) //nolint:gosec // fd fits int

	log.Logger = zerolog.New(os.Stderr).
		Level(level).
		With().
		Timestamp().
		Logger().
		Output(zerolog.ConsoleWriter{ //nolint:exhaustruct // not needed
			Out:     os.Stderr,
			NoColor: noColor,
			FormatLevel: func(i any) string {
				s, _ := i.(string)
				if noColor {
					return strings.ToUpper(s)
				}

				bg := fun.Switch(s, scuf.BgRed).
					Case(scuf.BgGreen, zerolog.LevelDebugValue).
					Case(scuf.BgBlue, zerolog.LevelInfoValue).
					Case(scuf.BgYellow, zerolog.LevelWarnValue).
					End()

				return scuf.String(" "+strings.ToUpper(s)+" ", bg, scuf.FgBlack)
			},
			FormatTimestamp: func(i any) string {
				s, _ := i.(string)
				t, err := time.Parse(zerolog.TimeFieldFormat, s)
				if err != nil {
					return s
				}

				if noColor {
					return t.Format("[15:04:05]")
				}
				return scuf.String(t.Format("[15:04:05]"), scuf.ModFaint, scuf.FgWhite)
			},
		})
}

func New(src Sources) (core.Config, error) {
	setupLogger(core.DefaultConfig)

	config, err := NewLoader().Load(src)
	if err != nil {
		return fun.Zero[core.Config](), err
	}

	setupLogger(config)
	return config, nil
}
