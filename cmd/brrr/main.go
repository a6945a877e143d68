// Command brrr runs the BRRR Discord bot: a conversational assistant
// for weekly coding projects with tool calling, per-user memory, and a
// scheduled project digest.
//
// Start the bot:
//
//	brrr serve --config brrr.yaml
//
// Secrets are referenced from the config file as ${VAR} and expanded
// from the environment, e.g. DISCORD_TOKEN and REQUESTY_API_KEY.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/brrr-bot/brrr/internal/channels/discord"
	"github.com/brrr-bot/brrr/internal/config"
	"github.com/brrr-bot/brrr/internal/digest"
	"github.com/brrr-bot/brrr/internal/engine"
	"github.com/brrr-bot/brrr/internal/observability"
	"github.com/brrr-bot/brrr/internal/provider"
	"github.com/brrr-bot/brrr/internal/store"
)

var version = "dev"

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "brrr",
		Short:         "BRRR Bot, a Discord assistant for weekly coding projects",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(buildServeCmd(), buildVersionCmd())
	return rootCmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and serve conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "brrr.yaml", "Path to the configuration file")
	return cmd
}

func serve(cfg *config.Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("starting brrr bot",
		"version", version,
		"primary_model", cfg.LLM.PrimaryModel,
		"store", cfg.Store.Path)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	oai, err := provider.NewOpenAIClient(provider.OpenAIConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		return err
	}
	client := provider.NewSerialClient(oai, cfg.LLM.CallTimeout, logger)

	metrics := observability.New()

	eng := engine.New(client, st, metrics, engine.Options{
		PrimaryModel:      cfg.LLM.PrimaryModel,
		FallbackModel:     cfg.LLM.FallbackModel,
		MaxTokens:         cfg.LLM.MaxTokens,
		FallbackMaxTokens: cfg.LLM.FallbackMaxTokens,
		MaxToolRounds:     cfg.Engine.MaxToolRounds,
		WakePhrase:        cfg.Engine.WakePhrase,
		HistoryLimit:      cfg.Engine.HistoryLimit,
	}, logger)

	adapter, err := discord.NewAdapter(discord.Config{
		Token:  cfg.Discord.Token,
		Logger: logger,
	}, eng)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := adapter.Start(ctx); err != nil {
		return err
	}

	if cfg.Metrics.Listen != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	if cfg.Digest.Enabled {
		d := digest.New(st, client, adapter, digest.Config{
			Schedule:  cfg.Digest.Schedule,
			ChannelID: cfg.Digest.ChannelID,
			Model:     cfg.LLM.PrimaryModel,
		}, logger)
		if err := d.Start(ctx); err != nil {
			return err
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	return adapter.Stop(stopCtx)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
