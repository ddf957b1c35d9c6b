package osutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func files(contents map[string]string) func(string) (string, bool) {
	return func(path string) (string, bool) {
		v, ok := contents[path]
		return v, ok
	}
}

func TestTotalMemory(t *testing.T) {
	const host = 16 << 30

	assert.EqualValues(t, host, totalMemory(host, files(nil)))

	assert.EqualValues(t, 1<<30, totalMemory(host, files(map[string]string{
		"/sys/fs/cgroup/memory.max": "1073741824\n",
	})))

	assert.EqualValues(t, 2<<30, totalMemory(host, files(map[string]string{
		"/sys/fs/cgroup/memory.max":                   "max\n",
		"/sys/fs/cgroup/memory/memory.limit_in_bytes": "2147483648\n",
	})))

	assert.EqualValues(t, host, totalMemory(host, files(map[string]string{
		"/sys/fs/cgroup/memory/memory.limit_in_bytes": "9223372036854771712\n",
	})))

	// Limits above the host memory are meaningless.
	assert.EqualValues(t, host, totalMemory(host, files(map[string]string{
		"/sys/fs/cgroup/memory.max": "68719476736",
	})))
}

func TestBallastSize(t *testing.T) {
	assert.Zero(t, BallastSize(0, 0))
	assert.Zero(t, BallastSize(-1, 0))
	assert.LessOrEqual(t, BallastSize(0.5, 1<<20), uint64(1<<20))
}
