// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// tfb-status serves uploaded benchmark-run results over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/TechEmpower/tfb-status-sub003/config"
	"github.com/TechEmpower/tfb-status-sub003/dispatch"
	"github.com/TechEmpower/tfb-status-sub003/handler"
	"github.com/TechEmpower/tfb-status-sub003/notify"
	"github.com/TechEmpower/tfb-status-sub003/route"
	"github.com/TechEmpower/tfb-status-sub003/server"
	"github.com/TechEmpower/tfb-status-sub003/store"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	err := buildCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "tfb-status",
		Short:         "Serve TechEmpower benchmark run results",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	return cmd
}

type loggingConfig struct {
	Level slog.Level `config:"level"`
}

type tracingConfig struct {
	Enabled bool `config:"enabled"`
}

type appConfig struct {
	HTTP    server.Config `config:"http"`
	DataDir string        `config:"data_dir"`
	Notify  notify.Config `config:"notify"`
	Logging loggingConfig `config:"logging"`
	Tracing tracingConfig `config:"tracing"`
}

func run(ctx context.Context, configPath string) error {
	var srcs []config.Source
	if configPath != "" {
		dir, base := filepath.Split(configPath)
		if dir == "" {
			dir = "."
		}
		srcs = append(srcs, config.FromYaml(config.NewFileReader(os.DirFS(dir), base)))
	}
	srcs = append(srcs, config.FromEnv())

	mgr, err := config.Read(srcs...)
	if err != nil {
		return err
	}

	var cfg appConfig
	err = mgr.Unmarshal(&cfg)
	if err != nil {
		return err
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Logging.Level,
	})
	log := slog.New(logHandler)

	if cfg.Tracing.Enabled {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return err
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		otel.SetTracerProvider(tp)
		defer func() {
			err := tp.Shutdown(context.Background())
			if err != nil {
				log.LogAttrs(
					nil,
					slog.LevelError,
					"failed to shut down tracer provider",
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	st, err := store.New(cfg.DataDir, store.LogHandler(logHandler))
	if err != nil {
		return err
	}
	notifier := notify.New(cfg.Notify, notify.LogHandler(logHandler))

	contributors := []route.Contributor{
		handler.NewHome(st, handler.HomeLogHandler(logHandler)),
		handler.NewResults(st, handler.ResultsLogHandler(logHandler)),
		handler.NewUpload(st, notifier, handler.UploadLogHandler(logHandler)),
		handler.NewRaw(st, handler.RawLogHandler(logHandler)),
		handler.NewHealth(),
	}

	// The schema endpoint documents every other route, so the registry
	// is built twice: once to derive the schema and once with the
	// schema routes included.
	reg, err := route.NewRegistry(contributors...)
	if err != nil {
		return err
	}
	contributors = append(contributors, handler.NewOpenApi(reg, "tfb-status", "1.0.0"))

	reg, err = route.NewRegistry(contributors...)
	if err != nil {
		return err
	}

	tree := dispatch.NewTree(reg, dispatch.LogHandler(logHandler))
	h := otelhttp.NewHandler(
		tree,
		"tfb-status",
		otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
	)

	srv := server.New(h, cfg.HTTP, server.LogHandler(logHandler))

	log.LogAttrs(
		ctx,
		slog.LevelInfo,
		"starting server",
		slog.String("host", cfg.HTTP.Host),
		slog.Int("port", int(cfg.HTTP.Port)),
	)
	return srv.Run(ctx)
}
