package osutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"
)

const (
	// Default cgroup v1 limit_in_bytes, meaning the memory is not restricted.
	// See https://unix.stackexchange.com/questions/420906/what-is-the-value-for-the-cgroups-limit-in-bytes-if-the-memory-is-not-restricte
	unrestrictedMemoryLimit = 9223372036854771712
)

var cgroupMemoryLimitLocations = []string{
	"/sys/fs/cgroup/memory.max",
	"/sys/fs/cgroup/memory/memory.limit_in_bytes",
}

// GetTotalMemory returns the total available memory size. The call is
// container-aware.
func GetTotalMemory() uint64 {
	return totalMemory(memory.TotalMemory(), readFile)
}

// BallastSize returns fraction of the available memory, in bytes, capped at
// max. A non-positive fraction disables the ballast.
func BallastSize(fraction float64, max uint64) uint64 {
	if fraction <= 0 {
		return 0
	}
	if fraction > 1 {
		fraction = 1
	}

	size := uint64(float64(GetTotalMemory()) * fraction)
	if max > 0 && size > max {
		return max
	}
	return size
}

func readFile(path string) (string, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(b), true
}

func totalMemory(host uint64, read func(string) (string, bool)) uint64 {
	for _, location := range cgroupMemoryLimitLocations {
		raw, ok := read(location)
		if !ok {
			continue
		}

		// cgroup v2 reports "max" when unrestricted.
		limit, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil || limit == unrestrictedMemoryLimit {
			continue
		}
		if host == 0 || limit < host {
			return limit
		}
	}
	return host
}
