package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"resume-bridge/internal/bootstrap"
	"resume-bridge/internal/shared/config"
	"resume-bridge/internal/shared/server"
	"resume-bridge/internal/shared/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("port", "", "listen port (overrides PORT)")
	cmd.Flags().Bool("log-debug", false, "enable debug logging (overrides LOG_DEBUG)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetString("port")
	}
	if cmd.Flags().Changed("log-debug") {
		cfg.LogDebug, _ = cmd.Flags().GetBool("log-debug")
	}

	if err := telemetry.Init(cfg.Env, cfg.LogDebug); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer telemetry.Sync()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		telemetry.Error("bootstrap.failed", map[string]any{"error": err})
		return err
	}
	defer app.Close()

	addr := server.Addr(cfg.Port)
	telemetry.Info("server.starting", map[string]any{
		"addr":     addr,
		"env":      cfg.Env,
		"upstream": cfg.Upstream.BaseURL,
	})
	if err := app.Router.Run(addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
