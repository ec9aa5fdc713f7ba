package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/autorelease/internal/autorelease"
	"github.com/simplesurance/autorelease/internal/cfg"
	"github.com/simplesurance/autorelease/internal/changelog"
	"github.com/simplesurance/autorelease/internal/githubclt"
	"github.com/simplesurance/autorelease/internal/githubrelease"
	"github.com/simplesurance/autorelease/internal/labels"
	"github.com/simplesurance/autorelease/internal/logfields"
	"github.com/simplesurance/autorelease/internal/notify"
	"github.com/simplesurance/autorelease/internal/provider/github"
	"github.com/simplesurance/autorelease/internal/release"
	"github.com/simplesurance/autorelease/internal/stringutils"
)

const appName = "autorelease"

var logger *zap.Logger

// Version is set via a ldflag on compilation
var Version = "unknown"

const metricsEndpoint = "/metrics"

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught , terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

func startHTTPSServer(listenAddr string, certFile, keyFile string, mux *http.ServeMux) {
	httpsServer := http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	goodbye.Register(func(context.Context, os.Signal) {
		const shutdownTimeout = 30 * time.Second
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating https server",
			logfields.Event("https_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		err := httpsServer.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down https server failed",
				logfields.Event("https_server_termination_failed"),
				zap.Error(err),
			)
		}
	})

	go func() {
		defer panicHandler()

		logger.Info(
			"https server started",
			logfields.Event("https_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpsServer.ListenAndServeTLS(certFile, keyFile)
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("https server terminated", logfields.Event("https_server_terminated"))
			return
		}

		logger.Fatal(
			"https server terminated unexpectedly",
			logfields.Event("https_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

func startHTTPServer(listenAddr string, mux *http.ServeMux) {
	httpServer := http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	goodbye.Register(func(context.Context, os.Signal) {
		const shutdownTimeout = 30 * time.Second
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating http server",
			logfields.Event("http_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		err := httpServer.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down http server failed",
				logfields.Event("http_server_termination_failed"),
				zap.Error(err),
			)
		}
	})

	go func() {
		defer panicHandler()

		logger.Info(
			"http server started",
			logfields.Event("http_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("http server terminated", logfields.Event("http_server_terminated"))
			return
		}

		logger.Fatal(
			"http server terminated unexpectedly",
			logfields.Event("http_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

type arguments struct {
	Verbose     *bool
	ConfigFile  *string
	DryRun      *bool
	ShowVersion *bool
}

var args arguments

const defConfigFile = "/etc/autorelease/config.toml"

func mustParseCommandlineParams() {
	args = arguments{
		Verbose: pflag.BoolP(
			"verbose",
			"v",
			false,
			"enable verbose logging",
		),
		ConfigFile: pflag.StringP(
			"cfg-file",
			"c",
			defConfigFile,
			"path to the autorelease configuration file",
		),
		DryRun: pflag.Bool(
			"dry-run",
			false,
			"simulate all changes on github, overrides the dry_run config setting",
		),
		ShowVersion: pflag.Bool(
			"version",
			false,
			"print the version and exit",
		),
	}

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]\nReceive GitHub webHook events and release merged pull requests.\n", appName)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
}

func mustParseCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	file, err := os.Open(*args.ConfigFile)
	exitOnErr("could not open configuration files", err)
	defer file.Close()

	config, err := cfg.Load(file)
	exitOnErr(fmt.Sprintf("could not load configuration file: %s", *args.ConfigFile), err)

	if *args.DryRun {
		config.Release.DryRun = true
	}

	exitOnErr(fmt.Sprintf("invalid configuration file: %s", *args.ConfigFile), config.Validate())

	return config
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zapEncoderConfig(config)

	logger := zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stdout,
		logLevel),
	)

	return logger
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()

	cfg.LevelKey = "loglevel"
	cfg.TimeKey = config.LogTimeKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	return cfg
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig = zapEncoderConfig(config)
	cfg.OutputPaths = []string{"stdout"}
	cfg.Encoding = config.LogFormat
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := cfg.Build()
	exitOnErr("could not initialize logger", err)

	return logger
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if *args.Verbose {
		logLevel = zapcore.DebugLevel
	} else {
		if err := (&logLevel).Set(config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s \n", config.LogLevel, err)
			os.Exit(2)
		}
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main")
	zap.ReplaceGlobals(logger)

	goodbye.Register(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	})
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

func mustInitGithubClient(config *cfg.Config) githubrelease.GithubClient {
	var clt *githubclt.Client

	if config.GithubAPIURL == "" {
		clt = githubclt.New(config.GithubAPIToken)
	} else {
		var err error
		clt, err = githubclt.NewEnterprise(config.GithubAPIToken, config.GithubAPIURL)
		exitOnErr("could not create github enterprise client", err)
	}

	if config.Release.DryRun {
		logger.Info(
			"dry run enabled, changes on github are simulated",
			logfields.Event("dry_run_enabled"),
		)

		return githubrelease.NewDryGithubClient(clt, logger)
	}

	return clt
}

// mustInitTargets creates an orchestrator per configured repository.
// All collaborator operations are retried via retryer.
func mustInitTargets(config *cfg.Config, clt githubrelease.GithubClient, retryer *autorelease.Retryer) []*autorelease.Target {
	rc := &config.Release

	classifier, err := labels.NewClassifier(rc.PatchLabels, rc.MinorLabels, rc.MajorLabels)
	exitOnErr("could not create label classifier", err)

	formatter, err := changelog.NewTemplateFormatter(rc.ItemTemplate)
	exitOnErr("could not parse changelog item template", err)

	mergeMethod, err := release.ParseMergeMethod(rc.MergeMethod)
	exitOnErr("invalid merge method", err)

	autoMergeMethod, err := release.ParseMergeMethod(rc.AutoMergeMethod)
	exitOnErr("invalid auto merge method", err)

	result := make([]*autorelease.Target, 0, len(rc.Repositories))

	for _, cfgRepo := range rc.Repositories {
		repo := githubrelease.Repository{
			Owner:  cfgRepo.Owner,
			Name:   cfgRepo.Name,
			Branch: cfgRepo.Branch,
		}

		store := githubrelease.NewStore(
			clt, &repo,
			githubrelease.WithFiles(rc.VersionFile, rc.ChangelogFile),
			githubrelease.WithReleaseBranch(rc.BranchPrefix, rc.TagPrefix),
		)

		scm := githubrelease.NewSourceControl(
			clt, &repo,
			githubrelease.WithExcludedBranchPrefix(rc.BranchPrefix),
			githubrelease.WithMaxChangeRecords(rc.MaxChangeRecords),
		)

		forge := githubrelease.NewForge(
			clt, &repo,
			githubrelease.WithPullRequestLabels(rc.PullRequestLabels),
			githubrelease.WithAutoMergeMethod(autoMergeMethod),
		)

		orchestrator := release.NewOrchestrator(
			classifier,
			changelog.NewGenerator(formatter),
			autorelease.NewRetryingStore(store, retryer),
			autorelease.NewRetryingSourceControl(scm, retryer),
			autorelease.NewRetryingForge(forge, retryer),
			release.WithMergeMethod(mergeMethod),
			release.WithTagPrefix(rc.TagPrefix),
			release.WithCreateTag(rc.CreateTag),
		)

		result = append(result, &autorelease.Target{
			Owner:  repo.Owner,
			Name:   repo.Name,
			Branch: repo.Branch,
			Runner: orchestrator,
		})
	}

	return result
}

func repositoriesString(repos []cfg.GithubRepository) string {
	var result strings.Builder

	for i := range repos {
		result.WriteString(repos[i].String())
		result.WriteRune('\n')
	}

	return stringutils.IndentString(strings.TrimSuffix(result.String(), "\n"), "  ")
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	mustParseCommandlineParams()

	if *args.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0) // nolint:gocritic // defer functions won't run
	}

	config := mustParseCfg()

	mustInitLogger(config)

	logger.Info(
		"loaded cfg file",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", *args.ConfigFile),
		zap.String("http_server_listen_addr", config.HTTPListenAddr),
		zap.String("https_server_listen_addr", config.HTTPSListenAddr),
		zap.String("github_webhook_endpoint", config.HTTPGithubWebhookEndpoint),
		zap.String("github_webhook_secret", hide(config.GithubWebHookSecret)),
		zap.String("github_api_token", hide(config.GithubAPIToken)),
		zap.String("github_api_url", config.GithubAPIURL),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
		zap.Strings("release.patch_labels", config.Release.PatchLabels),
		zap.Strings("release.minor_labels", config.Release.MinorLabels),
		zap.Strings("release.major_labels", config.Release.MajorLabels),
		zap.String("release.merge_method", config.Release.MergeMethod),
		zap.String("release.tag_prefix", config.Release.TagPrefix),
		zap.Bool("release.create_tag", config.Release.CreateTag),
		zap.String("release.trigger_query", config.Release.TriggerQuery),
		zap.Bool("release.dry_run", config.Release.DryRun),
		zap.String("release.repositories", repositoriesString(config.Release.Repositories)),
	)

	goodbye.Register(func(_ context.Context, sig os.Signal) {
		logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))
	})

	githubClient := mustInitGithubClient(config)

	retryer := autorelease.NewRetryer(autorelease.WithRetryTimeout(config.Release.RetryTimeoutDuration()))
	targets := mustInitTargets(config, githubClient, retryer)

	trigger, err := autorelease.NewTrigger(config.Release.TriggerQuery)
	exitOnErr("could not parse trigger query", err)

	history := autorelease.NewHistory(autorelease.DefHistorySize)
	evLoopOpts := []autorelease.Option{
		autorelease.WithHistory(history),
		autorelease.WithIgnoredBranchPrefix(config.Release.BranchPrefix),
	}

	if config.Release.CommentOnPR {
		templ, err := autorelease.ParseCommentTemplate(config.Release.CommentTemplate)
		exitOnErr("could not parse comment template", err)

		evLoopOpts = append(evLoopOpts, autorelease.WithComments(githubClient, templ))
	}

	for _, n := range config.Release.Notifications {
		notifier, err := notify.NewHTTPNotifier(
			n.URL,
			notify.WithMethod(n.Method),
			notify.WithAuth(n.User, n.Password),
			notify.WithHeaders(n.Headers),
		)
		exitOnErr("could not create notifier", err)

		logger.Info(
			"release notifications enabled",
			logfields.Event("notifier_registered"),
			zap.Stringer("notifier", notifier),
		)

		evLoopOpts = append(evLoopOpts, autorelease.WithNotifiers(notifier))
	}

	evLoop := autorelease.NewEventLoop(trigger, targets, retryer, evLoopOpts...)

	gh := github.New(
		[]chan<- *github.Event{evLoop.C()},
		github.WithPayloadSecret(config.GithubWebHookSecret),
	)

	mux := http.NewServeMux()

	mux.HandleFunc(config.HTTPGithubWebhookEndpoint, gh.HTTPHandler)
	logger.Info(
		"registered github webhook event http endpoint",
		logfields.Event("github_http_handler_registered"),
		zap.String("endpoint", config.HTTPGithubWebhookEndpoint),
	)

	mux.HandleFunc(config.HTTPReleasesEndpoint, history.HTTPHandlerList)
	logger.Info(
		"registered release history http endpoint",
		logfields.Event("release_history_http_handler_registered"),
		zap.String("endpoint", config.HTTPReleasesEndpoint),
	)

	mux.Handle(metricsEndpoint, promhttp.Handler())
	logger.Info(
		"registered prometheus metrics http endpoint",
		logfields.Event("metrics_http_handler_registered"),
		zap.String("endpoint", metricsEndpoint),
	)

	evLoopDone := make(chan struct{})
	go func() {
		defer panicHandler()
		defer close(evLoopDone)

		evLoop.Start()
	}()

	if config.HTTPListenAddr != "" {
		startHTTPServer(config.HTTPListenAddr, mux)
	}

	if config.HTTPSListenAddr != "" {
		startHTTPSServer(
			config.HTTPSListenAddr,
			config.HTTPSCertFile,
			config.HTTPSKeyFile,
			mux,
		)
	}

	// goodbye runs handlers with the same priority concurrently, the
	// event loop must be stopped after the http servers terminated.
	goodbye.RegisterWithPriority(func(context.Context, os.Signal) {
		logger.Debug(
			"stopping event loop",
			logfields.Event("event_loop_stopping"),
		)

		evLoop.Stop()
	}, 1)

	<-evLoopDone
}
