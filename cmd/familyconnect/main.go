// FamilyConnect Daemon - agent orchestration and family coordination service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/familyconnect/familyconnect/internal/agent"
	"github.com/familyconnect/familyconnect/internal/api"
	"github.com/familyconnect/familyconnect/internal/config"
	"github.com/familyconnect/familyconnect/internal/hub"
	"github.com/familyconnect/familyconnect/internal/interagent"
	"github.com/familyconnect/familyconnect/internal/llm"
	"github.com/familyconnect/familyconnect/internal/memory"
	"github.com/familyconnect/familyconnect/internal/storage"
	"github.com/familyconnect/familyconnect/internal/supervisor"
)

var (
	configPath  string
	dataDir     string
	port        int
	localAgents bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "familyconnect",
		Short: "FamilyConnect Daemon - family care coordination backend",
		RunE:  runDaemon,
	}

	home, _ := os.UserHomeDir()
	defaultDataDir := filepath.Join(home, ".familyconnect")

	rootCmd.Flags().StringVar(&configPath, "config", "", "Config file path")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", defaultDataDir, "Data directory")
	rootCmd.Flags().IntVar(&port, "port", 0, "HTTP server port (overrides config)")
	rootCmd.Flags().BoolVar(&localAgents, "local-agents", false, "Spawn local agent processes")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	fmt.Println("Starting FamilyConnect Daemon...")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	if localAgents {
		cfg.Features.EnableLocalAgents = true
	}

	// Open database
	dbPath := filepath.Join(cfg.DataDir, "familyconnect.db")
	db, err := storage.Open(storage.Config{Path: dbPath})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	stores := storage.NewStores(db)

	// Reasoning pipeline: primary -> legacy -> deterministic templates
	pipeline := llm.NewPipeline(cfg)
	if cfg.OpenAI.APIKey == "" {
		fmt.Println("OPENAI_API_KEY not set - responses fall back to templates")
	} else {
		fmt.Println("Structured reasoning backend configured")
	}

	coordinator := agent.NewCoordinator(pipeline, memory.NewStore())
	router := interagent.NewRouter(coordinator, stores)
	service := interagent.NewService(coordinator, router, stores)
	wsHub := hub.New(service)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Local agent runtimes, or the managed gateway if one is reachable.
	sup := supervisor.New(cfg.Agents, cfg.Gateway.URL)
	if sup.ProbeGateway(ctx) {
		fmt.Printf("Reasoning gateway available at %s\n", cfg.Gateway.URL)
	} else if cfg.Features.EnableLocalAgents {
		if err := sup.StartAll(); err != nil {
			fmt.Printf("Failed to start local agents: %v\n", err)
		} else {
			readyCtx, readyCancel := context.WithTimeout(ctx, 45*time.Second)
			if err := sup.WaitUntilReady(readyCtx); err != nil {
				fmt.Printf("Local agents not ready: %v\n", err)
			} else {
				fmt.Println("Local agent processes running")
			}
			readyCancel()
		}
	}

	server := api.New(api.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		Service:     service,
		Coordinator: coordinator,
		Stores:      stores,
		Hub:         wsHub,
		Supervisor:  sup,
	})

	// Handle shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nShutting down...")
		sup.StopAll()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		server.Stop(shutdownCtx)
		shutdownCancel()
		cancel()
	}()

	fmt.Printf("Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	return server.Start()
}
