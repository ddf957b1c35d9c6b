// Package app runs the process level services around an HTTP handler.
package app

import (
	"context"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tunegate/tunegate-server/pkg/metrics"
	"github.com/tunegate/tunegate-server/pkg/osutil"
)

const (
	maxBallastCapacity = 0.5

	debugServerRetryDelay = 5 * time.Second
)

// Job is a function run on a cron schedule while the app is serving.
type Job struct {
	Name     string
	Schedule string
	Run      func()
}

// NewMetricsProvider connects to New Relic when a license key is configured.
// It returns nil otherwise.
func NewMetricsProvider(config Config) (*newrelic.Application, error) {
	if len(config.NewRelicLicenseKey) == 0 {
		return nil, nil
	}

	nr, err := newrelic.NewApplication(
		newrelic.ConfigFromEnvironment(),
		newrelic.ConfigAppName(config.AppName),
		newrelic.ConfigLicense(config.NewRelicLicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "error connecting to new relic")
	}
	return nr, nil
}

// ConfigureLogger sets the standard logger's level and format. Entries are
// forwarded to New Relic when metricsProvider is set.
func ConfigureLogger(config Config, metricsProvider *newrelic.Application) {
	var formatter logrus.Formatter = &logrus.JSONFormatter{}
	if strings.EqualFold(config.LogFormat, "text") {
		formatter = &logrus.TextFormatter{FullTimestamp: true}
	}

	if metricsProvider != nil {
		logrus.SetFormatter(metrics.NewNewRelicLogFormatter(metricsProvider, formatter))
	} else {
		logrus.SetFormatter(formatter)
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}
}

// Run serves handler on the configured listen address until ctx is done, a
// termination signal is received, the server fails, or the memory leak cron
// fires. The server is then shut down within the grace period.
func Run(ctx context.Context, config Config, handler http.Handler, jobs ...Job) error {
	log := logrus.StandardLogger().WithField("type", "app")

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	if config.EnablePprof && len(config.DebugListenAddress) > 0 {
		go serveDebug(runCtx, log, config.DebugListenAddress)
	}

	var ballast []byte
	if config.EnableBallast {
		ballast = make([]byte, osutil.BallastSize(ballastCapacity(config.BallastCapacity), 0))
	}

	memoryLeakShutdownCh := make(chan struct{})
	var memoryLeakOnce sync.Once
	cronJob := cron.New(cron.WithLocation(time.Local))
	if config.EnableMemoryLeakCron {
		_, err := cronJob.AddFunc(config.MemoryLeakCronSchedule, func() {
			memoryLeakOnce.Do(func() { close(memoryLeakShutdownCh) })
		})
		if err != nil {
			return errors.Wrap(err, "failed to initialize memory leak cron")
		}
	}
	for _, job := range jobs {
		job := job
		_, err := cronJob.AddFunc(job.Schedule, func() {
			log.WithField("job", job.Name).Debug("running scheduled job")
			job.Run()
		})
		if err != nil {
			return errors.Wrapf(err, "failed to schedule %s", job.Name)
		}
	}
	cronJob.Start()
	defer cronJob.Stop()

	lis, err := net.Listen("tcp", config.ListenAddress)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", config.ListenAddress)
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverShutdownCh := make(chan struct{})
	go func() {
		defer close(serverShutdownCh)

		log.WithField("address", lis.Addr().String()).Info("http server listening")
		if err := server.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http serve stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigCh)

	// Wait for the following shutdown conditions:
	//    1. OS Signal telling us to shutdown
	//    2. The caller's context is done
	//    3. The HTTP Server has shutdown (for whatever reason)
	//    4. The memory leak cron fired
	select {
	case <-sigCh:
		log.Info("interrupt received, shutting down")
	case <-runCtx.Done():
		log.Info("context done, shutting down")
	case <-serverShutdownCh:
		log.Info("http server shutdown")
	case <-memoryLeakShutdownCh:
		log.Info("shutdown to deal with memory leak")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
	defer cancel()

	err = server.Shutdown(shutdownCtx)

	// Keep the ballast reachable until shutdown.
	if len(ballast) > 0 {
		ballast[0] = 1
	}

	if err != nil {
		return errors.Wrapf(err, "failed to stop the application within %v", config.ShutdownGracePeriod)
	}
	return nil
}

func ballastCapacity(capacity float64) float64 {
	if capacity > maxBallastCapacity {
		return maxBallastCapacity
	}
	return capacity
}

func newDebugMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

func serveDebug(ctx context.Context, log *logrus.Entry, address string) {
	server := &http.Server{
		Addr:              address,
		Handler:           newDebugMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	for {
		err := server.ListenAndServe()
		if err == http.ErrServerClosed {
			return
		}
		log.WithError(err).Warn("Debug HTTP server failed. Retrying in 5s...")

		select {
		case <-ctx.Done():
			return
		case <-time.After(debugServerRetryDelay):
		}
	}
}
