package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/daysim/internal/agents"
	"github.com/talgya/daysim/internal/api"
	"github.com/talgya/daysim/internal/engine"
	"github.com/talgya/daysim/internal/persistence"
	"github.com/talgya/daysim/internal/remote"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and simulation clock",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if port, _ := cmd.Flags().GetInt("port"); port > 0 {
				cfg.Server.Port = port
			}

			// ── Journal ───────────────────────────────────────────────
			var db *persistence.DB
			if cfg.Journal.Path != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0755); err != nil {
					return fmt.Errorf("create journal dir: %w", err)
				}
				db, err = persistence.Open(cfg.Journal.Path)
				if err != nil {
					return fmt.Errorf("open journal: %w", err)
				}
				defer db.Close()

				size := "new"
				if fi, err := os.Stat(cfg.Journal.Path); err == nil && fi.Size() > 0 {
					size = humanize.Bytes(uint64(fi.Size()))
				}
				slog.Info("journal opened", "path", cfg.Journal.Path, "size", size)
			}

			// ── Simulation ────────────────────────────────────────────
			sim := engine.NewSimulation(cfg.Simulation.TickInterval)
			if err := sim.Engine.SetSpeed(cfg.Simulation.Speed); err != nil {
				return err
			}
			if db != nil {
				db.Attach(sim)
			}

			client := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Timeout)

			if start, _ := cmd.Flags().GetString("start"); start != "" {
				n := cfg.Simulation.DefaultAgents
				list := agents.NewSpawner(cfg.Simulation.Seed, cfg.Simulation.Jitter).Spawn(n)
				if _, err := sim.StartDay(start, list, "local"); err != nil {
					return fmt.Errorf("start day: %w", err)
				}
			}

			// ── API ───────────────────────────────────────────────────
			server := &api.Server{
				Sim:         sim,
				DB:          db,
				Remote:      client,
				Port:        cfg.Server.Port,
				AdminKey:    cfg.Server.AdminKey,
				CORSOrigins: cfg.Server.CORSOrigins,
				MaxAgents:   cfg.Simulation.MaxAgents,
				Seed:        cfg.Simulation.Seed,
				Jitter:      cfg.Simulation.Jitter,
			}
			httpServer := server.Start()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "daysim is up: up to %s agents per day, %s per step at %gx.\n",
				humanize.Comma(int64(cfg.Simulation.MaxAgents)), cfg.Simulation.TickInterval, cfg.Simulation.Speed)
			fmt.Fprintf(out, "API: http://localhost:%d/api/v1/status\n", cfg.Server.Port)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			slog.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Warn("http shutdown", "error", err)
			}
			r := sim.Stop()
			slog.Info("stopped", "time", r.Time(), "events", humanize.Comma(int64(len(sim.Events(0)))))
			return nil
		},
	}

	cmd.Flags().Int("port", 0, "Override the configured HTTP port")
	cmd.Flags().String("start", "", "Start a local day at HH:MM on launch")
	return cmd
}
