package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/recollect/internal/profile"
	"github.com/hrygo/recollect/plugin/ai"
	"github.com/hrygo/recollect/plugin/ai/memory"
	"github.com/hrygo/recollect/server"
	"github.com/hrygo/recollect/server/runner/embedding"
	"github.com/hrygo/recollect/store"
	"github.com/hrygo/recollect/store/db"
)

const version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "recollect",
	Short: "Semantic fact store for a long-term assistant memory",
	RunE: func(_ *cobra.Command, _ []string) error {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			Version: version,
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			return fmt.Errorf("failed to validate profile: %w", err)
		}

		setupLogger(instanceProfile)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			return fmt.Errorf("failed to create db driver: %w", err)
		}
		if err := store.Migrate(ctx, dbDriver, instanceProfile.Driver); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}

		storeInstance := store.New(dbDriver, instanceProfile)
		defer storeInstance.Close()

		memoryService := memory.NewService(storeInstance)

		var embedder ai.Embedder
		if instanceProfile.IsAIEnabled() {
			provider, err := ai.NewProvider(ai.NewConfigFromProfile(instanceProfile))
			if err != nil {
				return fmt.Errorf("failed to create embedding provider: %w", err)
			}
			if err := provider.Validate(ctx); err != nil {
				// Not fatal: facts arrive content-only and the runner embeds
				// them once the provider recovers.
				slog.Warn("embedding provider validation failed", "error", err)
			}
			embedder = provider

			// Re-embedding uses its own context detached from request
			// cancellation; it stops with the process.
			runner := embedding.NewRunner(storeInstance, embedder, instanceProfile.RunnerInterval)
			go runner.Run(ctx)
		} else {
			slog.Info("embedding provider disabled; facts must arrive with precomputed embeddings")
		}

		httpServer := server.NewServer(instanceProfile, storeInstance, memoryService, embedder)

		errCh := make(chan error, 1)
		go func() {
			errCh <- httpServer.Start(ctx)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
		case <-ctx.Done():
			slog.Info("shutting down")
			if err := httpServer.Shutdown(context.Background()); err != nil {
				return err
			}
		}
		return nil
	},
}

func setupLogger(p *profile.Profile) {
	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if p.IsDev() {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("addr", "")
	viper.SetDefault("port", 8231)
	viper.SetDefault("data", "")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("dsn", "")

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8231, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}
	viper.SetEnvPrefix("recollect")
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
