package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dooshek/ttsclient/internal/config"
	"github.com/dooshek/ttsclient/internal/logger"
	"github.com/dooshek/ttsclient/internal/metrics"
	"github.com/dooshek/ttsclient/internal/tts"
)

func init() {
	// Set custom usage message to show -- prefix
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage of %s: [flags] <command> [args]\n\n", os.Args[0])
		fmt.Fprintln(out, "Commands:")
		for _, c := range commands {
			fmt.Fprintf(out, "  %-28s %s\n", c.usage, c.help)
		}
		fmt.Fprintln(out, "\nFlags:")
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(out, "  --%s", f.Name)
			name, usage := flag.UnquoteUsage(f)
			if len(name) > 0 {
				fmt.Fprintf(out, " %s", name)
			}
			fmt.Fprintf(out, "\n    \t%s", usage)
			if f.DefValue != "" && f.DefValue != "false" {
				fmt.Fprintf(out, " (default %q)", f.DefValue)
			}
			fmt.Fprintf(out, "\n")
		})
	}
}

func main() {
	runWizard := flag.Bool("wizard", false, "Run the configuration wizard")
	logLevel := flag.String("log-level", "", "Set log level (debug|info|warn|error), overrides the config file")
	logFilename := flag.String("log-filename", "", "Log to file instead of stdout")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	backend := flag.String("backend", "", "Backend override (comrpc|jsonrpc|firebolt)")
	timeout := flag.Duration("timeout", 30*time.Second, "How long speak waits for the speech to finish")
	flag.Parse()

	if *runWizard {
		if err := config.RunWizard(); err != nil {
			logger.Error("Error running wizard", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Error loading config", err)
		os.Exit(1)
	}

	switch {
	case *logLevel != "":
		logger.SetLevel(*logLevel)
	case cfg.LogLevel != "":
		logger.SetLevel(cfg.LogLevel)
	default:
		logger.SetLevel("info")
	}
	if *logFilename != "" {
		if err := logger.SetOutputFile(*logFilename); err != nil {
			fmt.Printf("Error setting log file: %v\n", err)
			os.Exit(1)
		}
		defer logger.CloseLogFile()
	}

	if *backend != "" {
		cfg.Backend = *backend
	}
	if *metricsAddr != "" {
		cfg.Metrics.Bind = *metricsAddr
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exporter *metrics.Exporter
	if cfg.Metrics.Bind != "" {
		exporter = metrics.NewExporter(cfg.Metrics.Bind)
		go func() {
			if err := exporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics exporter stopped", err)
			}
		}()
		logger.Infof("Serving metrics on %s/metrics", cfg.Metrics.Bind)
	}

	client := tts.NewClient(ctx, cfg, &connectionPrinter{out: os.Stdout})
	logger.Debugf("Using %s backend", client.Backend())

	err = run(ctx, client, flag.Args(), os.Stdout, *timeout)
	client.Close()

	if exporter != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := exporter.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Metrics exporter shutdown: %v", err)
		}
		cancel()
	}

	if err != nil {
		logger.Error("Command failed", err)
		os.Exit(1)
	}
}
