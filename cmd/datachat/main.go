package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/datachat/datachat/internal/api"
	"github.com/datachat/datachat/internal/app"
	"github.com/datachat/datachat/internal/config"
)

var (
	configPath string
	addr       string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "datachat",
	Short: "Conversational backend for chatting about tabular data",
	Long: `DataChat serves a conversation API with sliding-window context
management, response caching, and routed analysis of uploaded CSV data.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func runServer() error {
	if debug {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(configPath, debug)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	application, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	server := api.NewServer(cfg, application.Chats, application.Analyzer, application.Datasets, application.Cache)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Stop(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
