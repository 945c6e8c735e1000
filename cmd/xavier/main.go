package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/audit"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/config"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/digest"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/life"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/llm"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/logging"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/orchestrator"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/provider/github"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/provider/twitter"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/store"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/tech"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/timeline"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/tweets"
)

func main() {
	var (
		production     bool
		provider       string
		tweetsPerYear  int
		digestInterval int
		loop           bool
		interval       time.Duration
	)

	rootCmd := &cobra.Command{
		Use:   "xavier",
		Short: "Runs the simulated persona's timeline engine",
		Long: `Xavier advances a simulated persona's social media timeline one post
per cycle: it keeps the technology forecast and narrative digest current,
generates the next post when the queue is empty, and publishes it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLoggerWithService("xavier")
			config.LoadEnv(logger)

			cfg := config.Load(production)
			if provider != "" {
				cfg.Provider = provider
			}
			if tweetsPerYear > 0 {
				cfg.TweetsPerYear = tweetsPerYear
			}
			if digestInterval > 0 {
				cfg.DigestInterval = digestInterval
			}
			if err := cfg.Validate(); err != nil {
				logger.WithError(err).Fatal("Invalid configuration")
			}

			llmCfg := llm.LoadConfig(cfg.Provider)
			generator, err := llm.NewProvider(llmCfg)
			if err != nil {
				logger.WithError(err).Fatal("Failed to build generation provider")
			}

			phases, err := life.Load()
			if err != nil {
				logger.WithError(err).Fatal("Failed to load life phases")
			}

			blobs := github.NewClient(cfg.GitHubToken, cfg.GitHubOwner, cfg.GitHubRepo)
			st := store.New(blobs, cfg.Env(), logger)
			recorder := audit.NewRecorder("logs", cfg.Env(), logger)
			clock := timeline.NewClock(cfg.TweetsPerYear)

			var poster orchestrator.Poster
			if cfg.PostToTwitter {
				poster = twitter.NewClient(cfg.TwitterBearerToken)
			}

			workflow := orchestrator.NewWorkflow(
				st,
				clock,
				tech.NewScheduler(st, generator, logger, recorder),
				digest.NewScheduler(st, generator, logger, recorder, cfg.DigestInterval),
				tweets.NewPlanner(st, generator, logger, recorder, clock, cfg.DigestInterval),
				poster,
				phases,
				logger,
				cfg.DigestInterval,
			)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := st.Initialize(ctx, phases); err != nil {
				logger.WithError(err).Fatal("Failed to initialize store")
			}

			logger.WithFields(logging.Fields{
				"env":      cfg.Env(),
				"provider": cfg.Provider,
				"loop":     loop,
			}).Info("Starting simulation")

			for {
				if err := workflow.Run(ctx); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					logger.WithError(err).Error("Cycle failed")
					if !loop {
						return err
					}
				}
				if !loop {
					return nil
				}
				select {
				case <-ctx.Done():
					logger.Info("Shutting down")
					return nil
				case <-time.After(interval):
				}
			}
		},
	}

	rootCmd.Flags().BoolVar(&production, "production", false, "use the production namespace and post externally")
	rootCmd.Flags().StringVar(&provider, "provider", "", "generation provider (xai, anthropic, openai)")
	rootCmd.Flags().IntVar(&tweetsPerYear, "tweets-per-year", 0, "posts per simulated year")
	rootCmd.Flags().IntVar(&digestInterval, "digest-interval", 0, "posts between digest regenerations")
	rootCmd.Flags().BoolVar(&loop, "loop", false, "run cycles continuously instead of once")
	rootCmd.Flags().DurationVar(&interval, "interval", time.Hour, "sleep between cycles when looping")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
