package core

// TODO: set at compile time
// see https://developers.redhat.com/articles/2022/11/14/3-ways-embed-commit-hash-go-programs#2__using_go_generate
const Version = "0.1.0"

const (
	AppName = "block-cpu"

	EnvNumCPU     = "BLOCK_CPU_NUM_CPU"
	EnvMaxThreads = "BLOCK_CPU_MAX_THREADS"
	EnvDebug      = "BLOCK_CPU_DEBUG"
)

type Config struct {
	// NumCPU - number of cores to block
	NumCPU WorkerCount `json:"num_cpu"`
	// MaxThreads - limit of worker threads, 0 means detect from system limits
	MaxThreads int `json:"max_threads"`
	Debug      bool `json:"debug"`
}

var DefaultConfig = Config{
	NumCPU:     1,
	MaxThreads: 0,
	Debug:      false,
}
