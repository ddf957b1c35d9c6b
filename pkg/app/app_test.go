package app

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunegate/tunegate-server/pkg/testutil"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app_name: tunegate-test
listen_address: ":9999"
shutdown_grace_period: 5s
library_concurrency: 3
`), 0o600))

	t.Setenv("SWAP_SLIPPAGE_BPS", "75")
	t.Setenv("LIBRARY_CONCURRENCY", "4")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/test")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "tunegate-test", config.AppName)
	assert.Equal(t, ":9999", config.ListenAddress)
	assert.Equal(t, 5*time.Second, config.ShutdownGracePeriod)
	assert.EqualValues(t, 75, config.SwapSlippageBps)
	assert.Equal(t, 4, config.LibraryConcurrency)
	assert.Equal(t, "postgres://localhost/test", config.PostgresDSN)
	assert.Equal(t, defaultConfig.MetadataCacheBudget, config.MetadataCacheBudget)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("APP_NAME", "")
	t.Setenv("SWAP_SLIPPAGE_BPS", "20000")

	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())

	invalid := config
	invalid.AppName = ""
	assert.Error(t, invalid.Validate())

	invalid = config
	invalid.ShutdownGracePeriod = 0
	assert.Error(t, invalid.Validate())

	invalid = config
	invalid.SwapSlippageBps = 10_001
	assert.Error(t, invalid.Validate())
}

func TestConfigureLogger(t *testing.T) {
	defer logrus.SetLevel(logrus.GetLevel())
	defer logrus.SetFormatter(logrus.StandardLogger().Formatter)

	config := DefaultConfig()
	config.LogLevel = "DEBUG"
	config.LogFormat = "text"
	ConfigureLogger(config, nil)
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logrus.StandardLogger().Formatter)

	config.LogLevel = "nonsense"
	config.LogFormat = "json"
	ConfigureLogger(config, nil)
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)
}

func TestNewMetricsProvider_Disabled(t *testing.T) {
	nr, err := NewMetricsProvider(DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, nr)
}

func freeAddress(t *testing.T) string {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()
	return lis.Addr().String()
}

func TestRun(t *testing.T) {
	config := DefaultConfig()
	config.ListenAddress = freeAddress(t)
	config.EnablePprof = false
	config.ShutdownGracePeriod = time.Second

	var jobRuns int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, config, handler, Job{
			Name:     "count",
			Schedule: "@every 1s",
			Run:      func() { atomic.AddInt32(&jobRuns, 1) },
		})
	}()

	require.NoError(t, testutil.WaitFor(5*time.Second, 50*time.Millisecond, func() bool {
		resp, err := http.Get("http://" + config.ListenAddress)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusTeapot
	}))

	require.NoError(t, testutil.WaitFor(5*time.Second, 100*time.Millisecond, func() bool {
		return atomic.LoadInt32(&jobRuns) > 0
	}))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestRun_InvalidSchedule(t *testing.T) {
	config := DefaultConfig()
	config.ListenAddress = freeAddress(t)
	config.EnablePprof = false

	err := Run(context.Background(), config, http.NotFoundHandler(), Job{
		Name:     "broken",
		Schedule: "not a schedule",
		Run:      func() {},
	})
	assert.Error(t, err)
}

func TestRun_ListenFailure(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	config := DefaultConfig()
	config.ListenAddress = lis.Addr().String()
	config.EnablePprof = false

	assert.Error(t, Run(context.Background(), config, http.NotFoundHandler()))
}

func TestBallastCapacity(t *testing.T) {
	assert.Equal(t, 0.25, ballastCapacity(0.25))
	assert.Equal(t, maxBallastCapacity, ballastCapacity(0.9))
}
