// Command taskmeshd runs the taskmesh orchestration engine behind its HTTP
// streaming surface.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/hupe1980/taskmesh/config"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/engine"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/memory"
	"github.com/hupe1980/taskmesh/model"
	"github.com/hupe1980/taskmesh/model/anthropic"
	"github.com/hupe1980/taskmesh/model/openai"
	"github.com/hupe1980/taskmesh/server"
	"github.com/hupe1980/taskmesh/tool"
	"github.com/hupe1980/taskmesh/worker"
	"github.com/hupe1980/taskmesh/workflow"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskmeshd",
		Short:         "Agent task orchestration and streaming execution daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP orchestration surface",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override log level (debug|info|warn|error)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.Logging.Level),
		Format:    cfg.Logging.Format,
		Component: "taskmeshd",
	})

	mem, err := buildMemory(cfg, logger)
	if err != nil {
		return err
	}

	roster, err := buildRoster(cfg, logger)
	if err != nil {
		return err
	}

	eng := engine.New(roster, func(o *engine.Options) {
		o.CoordinatorID = cfg.Execution.CoordinatorID
		o.Logger = logger.WithComponent("engine")
		o.ExecutorOptions = []func(o *workflow.ExecutorOptions){
			func(eo *workflow.ExecutorOptions) {
				eo.Memory = mem
				eo.InactivityTimeout = cfg.Execution.InactivityTimeout
				eo.Logger = logger.WithComponent("executor")
			},
		}
	})

	srv, err := server.New(eng, server.Config{Host: cfg.Server.Host, Port: cfg.Server.Port},
		func(o *server.Options) { o.Logger = logger.WithComponent("http") })
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildMemory(cfg *config.Config, logger *logging.TaskMeshLogger) (*memory.Service, error) {
	var durable memory.DurableStore = memory.NullStore{}
	if cfg.Memory.RedisAddr != "" {
		store, err := memory.NewRedisStore(&redis.Options{Addr: cfg.Memory.RedisAddr}, cfg.Memory.RedisPrefix)
		if err != nil {
			return nil, fmt.Errorf("redis store: %w", err)
		}
		durable = store
	}
	return memory.New(func(o *memory.Options) {
		o.Capacity = cfg.Memory.Capacity
		o.DefaultTTL = cfg.Memory.DefaultTTL
		o.Durable = durable
		o.Logger = logger.WithComponent("memory")
	}), nil
}

func buildRoster(cfg *config.Config, logger *logging.TaskMeshLogger) (*worker.Set, error) {
	tools := tool.NewRegistry()
	set := worker.NewSet()
	for _, wc := range cfg.Workers {
		backend, err := buildBackend(wc)
		if err != nil {
			return nil, err
		}
		caps := make([]core.Capability, 0, len(wc.Capabilities))
		for _, c := range wc.Capabilities {
			caps = append(caps, core.Capability(c))
		}
		set.Register(
			core.WorkerConfig{
				ID:           wc.ID,
				Template:     wc.Template,
				AllowedTools: wc.AllowedTools,
				Capabilities: caps,
			},
			worker.New(backend, tools, func(o *worker.Options) {
				o.Logger = logger.WithComponent("worker")
			}),
		)
	}
	return set, nil
}

func buildBackend(wc config.WorkerConfig) (model.Model, error) {
	switch wc.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if wc.Model != "" {
				o.Model = wc.Model
			}
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if wc.Model != "" {
				o.Model = anthropicsdk.Model(wc.Model)
			}
		}), nil
	case "", "mock":
		return model.NewMock(wc.ID), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q for worker %s", wc.Provider, wc.ID)
	}
}
