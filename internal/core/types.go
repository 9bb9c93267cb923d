package core

import (
	"math"
	"strconv"
)

// WorkerCount is a number of cpu cores to block, one worker per core.
type WorkerCount uint8

const MaxWorkerCount WorkerCount = math.MaxUint8

func (n WorkerCount) String() string {
	return strconv.Itoa(int(n))
}

// ParseWorkerCount parses decimal worker count, rejecting values outside of [0, MaxWorkerCount].
func ParseWorkerCount(s string) (WorkerCount, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, err
	}
	return WorkerCount(n), nil
}
