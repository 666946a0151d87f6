package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/wsn-embedder/internal/episode"
	"github.com/signalsfoundry/wsn-embedder/internal/logging"
	"github.com/signalsfoundry/wsn-embedder/internal/observability"
)

const envPrefix = "WSNEMBED"

// Flag and config keys.
const (
	keyConfig            = "config"
	keyLogLevel          = "log-level"
	keyLogFormat         = "log-format"
	keyMetricsAddr       = "metrics-addr"
	keySeed              = "seed"
	keyEpsilon           = "epsilon"
	keyMaxSteps          = "max-steps"
	keyMaxRestarts       = "max-restarts"
	keyRestartUnsolvable = "restart-unsolvable"
	keyEpisodes          = "episodes"
	keyParallelism       = "parallelism"
)

// app carries the state shared by every subcommand once the root command
// has resolved its configuration.
type app struct {
	v       *viper.Viper
	log     logging.Logger
	metrics *observability.EmbeddingCollector

	metricsSrv *http.Server
	shutdown   func(context.Context) error
}

// newRootCmd builds the command tree. The returned app must be torn down
// once the command has run, which executeRoot does.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{v: viper.New(), log: logging.Noop()}

	root := &cobra.Command{
		Use:           "wsnembed",
		Short:         "Incrementally embed overlay tasks into wireless sensor networks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String(keyConfig, "", "optional config file (yaml, toml or json)")
	pf.String(keyLogLevel, "info", "log level: debug, info, warn, error")
	pf.String(keyLogFormat, "text", "log format: text or json")
	pf.String(keyMetricsAddr, "", "serve Prometheus /metrics on this address while running")
	pf.Uint64(keySeed, 1, "seed for the greedy agent")

	root.AddCommand(newCheckCmd(a), newRunCmd(a), newEvalCmd(a))
	return root, a
}

// executeRoot runs root and tears a down afterwards, whether or not the
// command failed. Cobra skips post-run hooks on errors.
func executeRoot(ctx context.Context, root *cobra.Command, a *app) error {
	defer a.teardown(ctx)
	return root.ExecuteContext(ctx)
}

// episodeFlags registers the flags shared by run and eval.
func episodeFlags(fs *pflag.FlagSet) {
	fs.Float64(keyEpsilon, 0.01, "probability of a uniformly random action")
	fs.Int(keyMaxSteps, episode.DefaultMaxSteps, "action budget per episode")
	fs.Int(keyMaxRestarts, episode.DefaultMaxRestarts, "restarts allowed after getting stuck")
	fs.Bool(keyRestartUnsolvable, false, "restart as soon as an attempt is proven unsolvable")
}

// setup resolves flags, environment and config file into a.v and starts
// the ambient services.
func (a *app) setup(cmd *cobra.Command) error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return eris.Wrap(err, "bind flags")
	}
	if path := a.v.GetString(keyConfig); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return eris.Wrapf(err, "read config %q", path)
		}
	}

	a.log = logging.New(logging.Config{
		Level:     a.v.GetString(keyLogLevel),
		Format:    a.v.GetString(keyLogFormat),
		AddSource: strings.EqualFold(a.v.GetString(keyLogLevel), "debug"),
		Output:    cmd.ErrOrStderr(),
	})
	ctx := logging.ContextWithLogger(cmd.Context(), a.log)
	cmd.SetContext(ctx)

	metrics, err := observability.NewEmbeddingCollector(nil)
	if err != nil {
		return err
	}
	a.metrics = metrics
	if addr := a.v.GetString(keyMetricsAddr); addr != "" {
		a.metricsSrv = serveMetrics(ctx, addr, metrics, a.log)
	}

	tracing, err := observability.TracingConfigFromEnv()
	if err != nil {
		return err
	}
	if a.shutdown, err = observability.InitTracing(ctx, tracing, a.log,
		observability.WithSpanOutput(cmd.ErrOrStderr())); err != nil {
		return err
	}
	return nil
}

func (a *app) teardown(ctx context.Context) {
	observability.ShutdownWithTimeout(context.WithoutCancel(ctx), a.shutdown, a.log)
	if a.metricsSrv != nil {
		_ = a.metricsSrv.Shutdown(context.WithoutCancel(ctx))
	}
}

// controller builds an episode controller from the resolved flags.
func (a *app) controller() *episode.Controller {
	opts := []episode.Option{
		episode.WithMetrics(a.metrics),
		episode.WithMaxSteps(a.v.GetInt(keyMaxSteps)),
		episode.WithMaxRestarts(a.v.GetInt(keyMaxRestarts)),
	}
	if a.v.GetBool(keyRestartUnsolvable) {
		opts = append(opts, episode.WithRestartUnsolvable())
	}
	return episode.NewController(opts...)
}

func serveMetrics(ctx context.Context, addr string, collector *observability.EmbeddingCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(ctx, "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(ctx, "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
