package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/curiolabs/curio/internal/agent"
	"github.com/curiolabs/curio/internal/alert"
	"github.com/curiolabs/curio/internal/anomaly"
	"github.com/curiolabs/curio/internal/config"
	"github.com/curiolabs/curio/internal/generator"
	"github.com/curiolabs/curio/internal/knowledge"
	"github.com/curiolabs/curio/internal/llm"
	"github.com/curiolabs/curio/internal/qa"
	"github.com/curiolabs/curio/internal/store"

	_ "net/http/pprof"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultMetricsAddr = ":8080"

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	showVersionFlag := flag.Bool("version", false, "show version and exit")
	verboseFlag := flag.Bool("verbose", false, "verbose mode - show debug logs")
	enablePprofFlag := flag.Bool("enable-pprof", false, "enable pprof server")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics")
	modelFlag := flag.String("model", "", "Anthropic model id (defaults to "+string(llm.DefaultModel)+")")
	flag.Parse()

	if *showVersionFlag {
		fmt.Printf("version: %s, commit: %s, date: %s\n", version, commit, date)
		os.Exit(0)
	}

	_ = godotenv.Load()

	log := newLogger(*verboseFlag)

	// Start pprof server
	if *enablePprofFlag {
		go func() {
			log.Info("starting pprof server", "address", "localhost:6060")
			err := http.ListenAndServe("localhost:6060", nil)
			if err != nil {
				log.Error("failed to start pprof server", "error", err)
			}
		}()
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		return err
	}

	tasks, found, err := config.LoadTasks(cfg.TasksConfigPath)
	if err != nil {
		log.Error("failed to load tasks config", "error", err, "path", cfg.TasksConfigPath)
		return err
	}
	if !found {
		log.Info("tasks config not found, using defaults", "path", cfg.TasksConfigPath)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Set up prometheus metrics server if enabled.
	if *metricsAddrFlag != "" {
		agent.MetricBuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				os.Exit(1)
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
				os.Exit(1)
			}
		}()
	}

	db, err := store.Open(cfg.QuestionDBPath)
	if err != nil {
		log.Error("failed to open question database", "error", err, "path", cfg.QuestionDBPath)
		return err
	}
	defer db.Close()

	questionStore, err := store.New(store.Config{
		Logger: log,
		DB:     db,
	})
	if err != nil {
		log.Error("failed to create question store", "error", err)
		return err
	}

	loader, err := knowledge.NewLoader(&knowledge.LoaderConfig{
		Logger:           log,
		SchemaPath:       cfg.SchemaPath,
		TrainingDataPath: cfg.TrainingDataPath,
	})
	if err != nil {
		log.Error("failed to create knowledge loader", "error", err)
		return err
	}

	llmClient := llm.NewAnthropicClient(log, anthropic.Model(*modelFlag))

	gen, err := generator.New(&generator.Config{
		Logger: log,
		LLM:    llmClient,
	})
	if err != nil {
		log.Error("failed to create question generator", "error", err)
		return err
	}

	qaClient, err := qa.New(&qa.Config{
		Logger:    log,
		APIURL:    cfg.QAAPIURL,
		APIKey:    cfg.QAAPIKey,
		UserEmail: cfg.QAUserEmail,
		AgentID:   cfg.QAAgentID,
	})
	if err != nil {
		log.Error("failed to create qa client", "error", err)
		return err
	}

	engine, err := anomaly.New(&anomaly.Config{
		Logger: log,
		LLM:    llmClient,
	})
	if err != nil {
		log.Error("failed to create decision engine", "error", err)
		return err
	}

	alerts, err := alert.NewSlackDispatcher(&alert.SlackConfig{
		Logger:     log,
		BotToken:   cfg.SlackBotToken,
		Channel:    cfg.SlackChannel,
		WebhookURL: cfg.SlackWebhookURL,
	})
	if err != nil {
		log.Error("failed to create alert dispatcher", "error", err)
		return err
	}

	a, err := agent.New(&agent.Config{
		Logger:            log,
		Clock:             clockwork.NewRealClock(),
		Store:             questionStore,
		Knowledge:         loader,
		Generator:         gen,
		QA:                qaClient,
		Decider:           engine,
		Alerts:            alerts,
		Tasks:             tasks,
		StructuredPrefix:  cfg.StructuredPrefix,
		ExploratoryPrefix: cfg.ExploratoryPrefix,
	})
	if err != nil {
		log.Error("failed to create agent", "error", err)
		return err
	}

	if err := a.Run(ctx); err != nil {
		log.Error("agent run failed", "error", err)
		return err
	}

	log.Info("agent stopped")
	return nil
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(formatRFC3339Millis(a.Value.Time()))
			}
			return a
		},
	}))
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000
	return fmt.Sprintf("%s.%03dZ", base, ms)
}
