// Package dist reads the process-group identity of the current process
// from the environment, following the torchrun/elastic-launcher
// convention: RANK identifies the process within the group and
// WORLD_SIZE is the group size. Single-process runs leave both unset.
package dist

import (
	"os"
	"strconv"
)

// Rank returns this process's rank within the distributed group.
// Unset or malformed RANK means rank 0.
func Rank() int {
	return envInt("RANK", 0)
}

// WorldSize returns the size of the distributed group, minimum 1.
func WorldSize() int {
	if n := envInt("WORLD_SIZE", 1); n > 0 {
		return n
	}
	return 1
}

// IsLeader reports whether this process is rank zero, the process
// conventionally responsible for side effects such as log writing.
func IsLeader() bool {
	return Rank() == 0
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
