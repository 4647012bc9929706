// Solverd is the collaborative code-solving daemon.
//
// It exposes a REST API for submitting solve tasks, an SSE stream for
// task progress, and a WebSocket endpoint for duplex chat. Each task
// runs through a pipeline of specialized agents backed by a generative
// model provider.
//
// Usage:
//
//	# Start with defaults
//	solverd
//
//	# Configure via file and environment
//	solverd -config /etc/solverd/config.yaml
//	SERVER_PORT=9090 BACKEND_PROVIDER=openai solverd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/coderforge/solverd/internal/agent"
	"github.com/coderforge/solverd/internal/backend"
	"github.com/coderforge/solverd/internal/config"
	"github.com/coderforge/solverd/internal/events"
	"github.com/coderforge/solverd/internal/httpapi"
	"github.com/coderforge/solverd/internal/logging"
	"github.com/coderforge/solverd/internal/orchestrator"
	"github.com/coderforge/solverd/internal/schemacall"
	"github.com/coderforge/solverd/internal/task"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  solverd            Start the solverd daemon\n")
			fmt.Fprintf(os.Stderr, "  solverd version    Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("solverd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the service and blocks until ctx is cancelled.
//
//  1. Loads and validates configuration
//  2. Builds the logger
//  3. Creates the backend client and schema caller
//  4. Wires agents, orchestrator, and task manager
//  5. Optionally attaches the NATS event bus
//  6. Starts the HTTP server
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting solverd",
		zap.String("version", version),
		zap.String("provider", cfg.Backend.Provider),
		logging.RedactedString("api_key", cfg.Backend.APIKey))

	invoker, err := backend.New(cfg.Backend)
	if err != nil {
		return fmt.Errorf("failed to create backend: %w", err)
	}

	caller := schemacall.New(invoker, logger)
	planner := agent.NewPlanner(caller, logger)
	researcher := agent.NewResearcher(caller, logger)
	generator := agent.NewGenerator(caller, cfg.Pipeline.MaxIterations, logger)
	tester := agent.NewTester(caller, logger)
	chat := agent.NewChat(caller, logger)

	distributor := events.NewDistributor(logger)

	conns := events.NewConnManager(logger)
	defer conns.Close()
	if cfg.Events.Enabled {
		nc, err := conns.Acquire(cfg.Events.NATSURL)
		if err != nil {
			return fmt.Errorf("failed to connect event bus: %w", err)
		}
		distributor.AttachBus(nc)
		logger.Info("event bus attached", zap.String("url", cfg.Events.NATSURL))
	}

	pipeline := orchestrator.New(planner, researcher, generator, tester, distributor,
		orchestrator.Config{FatalTransportFailures: cfg.Pipeline.FatalTransportFailures},
		logger)

	manager := task.NewManager(pipeline, cfg.Pipeline.WorkerLimit, logger)

	server := httpapi.NewServer(httpapi.Options{
		Addr:            cfg.Server.Addr(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, manager, distributor, chat, logger)

	logger.Info("listening", zap.String("addr", cfg.Server.Addr()))
	return server.Start(ctx)
}
