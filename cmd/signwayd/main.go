// Command signwayd runs the Signway gateway: an HTTP server that
// verifies signed URLs and forwards admitted requests to their
// declared upstream, streaming the response back to the caller.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/signway/signway"
	"github.com/signway/signway/admission"
	"github.com/signway/signway/forwarder"
	"github.com/signway/signway/metrics"
	"github.com/signway/signway/registry"
)

// CLI is the gateway process's full set of env-tag-driven flags.
type CLI struct {
	Listen          string        `env:"SIGNWAY_LISTEN" help:"Admission server listen address." default:":8080"`
	MetricsListen   string        `env:"SIGNWAY_METRICS_LISTEN" help:"Metrics/health server listen address." default:":8081"`
	RegistryFile    string        `env:"SIGNWAY_REGISTRY_FILE" help:"Path to the JSON client-record registry file." required:""`
	ReloadInterval  time.Duration `env:"SIGNWAY_REGISTRY_RELOAD_INTERVAL" help:"How often the registry file is re-read." default:"30s"`
	ConnectTimeout  time.Duration `env:"SIGNWAY_CONNECT_TIMEOUT" help:"Outbound connect timeout to upstreams." default:"5s"`
	IdleReadTimeout time.Duration `env:"SIGNWAY_IDLE_READ_TIMEOUT" help:"Idle-read timeout on a streaming upstream response." default:"30s"`
	ClockSkew       time.Duration `env:"SIGNWAY_CLOCK_SKEW" help:"Clock-skew tolerance applied to signed URL expiry." default:"0s"`
	HostInParameter bool          `env:"SIGNWAY_HOST_IN_PARAMETER" help:"Carry the upstream host in the X-Sw-Host signing parameter instead of the inbound Host header." default:"true"`
	MaxUpstreams    int           `env:"SIGNWAY_MAX_UPSTREAMS" help:"Maximum number of distinct (scheme, host, port) upstreams pooled at once." default:"256"`
	ConcurrencyCeil int           `env:"SIGNWAY_CONCURRENCY_CEILING" help:"Maximum in-flight requests per client id; 0 disables the ceiling." default:"0"`
	LogLevel        string        `env:"SIGNWAY_LOG_LEVEL" help:"logrus level: debug, info, warn, error." default:"info"`
}

func main() {
	var cli CLI
	kong.Parse(&cli)

	logger := logrus.StandardLogger()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cli.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("signwayd: unrecognized log level %q, defaulting to info", cli.LogLevel)
	}

	hostShape := signway.HostShapeInSignature
	if cli.HostInParameter {
		hostShape = signway.HostShapeInParameter
	}

	config, err := signway.NewServerConfig(
		signway.WithBindAddr(cli.Listen),
		signway.WithConnectTimeout(cli.ConnectTimeout),
		signway.WithIdleReadTimeout(cli.IdleReadTimeout),
		signway.WithClockSkew(cli.ClockSkew),
		signway.WithHostShape(hostShape),
		signway.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("signwayd: invalid configuration: %v", err)
	}

	reg, err := registry.NewFileRegistry(cli.RegistryFile,
		registry.WithReloadInterval(cli.ReloadInterval),
		registry.WithFileLogger(logger),
	)
	if err != nil {
		log.Fatalf("signwayd: loading registry: %v", err)
	}
	defer reg.Close()

	pool, err := forwarder.NewConnectionPool(cli.MaxUpstreams, config.ConnectTimeout, config.IdleReadTimeout)
	if err != nil {
		log.Fatalf("signwayd: creating connection pool: %v", err)
	}
	defer pool.Close()

	fwd := forwarder.New(pool)

	var guard *forwarder.ConcurrencyGuard
	if cli.ConcurrencyCeil > 0 {
		guard = forwarder.NewConcurrencyGuard(cli.ConcurrencyCeil)
	}

	m := metrics.New()
	handler := admission.New(config, reg, fwd, guard, m)

	admissionServer := &http.Server{
		Addr:              config.BindAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", m.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsServer := &http.Server{
		Addr:              cli.MetricsListen,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", config.BindAddr).Info("signwayd: admission server listening")
		if err := admissionServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("signwayd: admission server failed")
		}
	}()

	go func() {
		logger.WithField("addr", cli.MetricsListen).Info("signwayd: metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("signwayd: metrics server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("signwayd: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = admissionServer.Shutdown(ctx)
	_ = metricsServer.Shutdown(ctx)
}
