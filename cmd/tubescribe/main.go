package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tubescribe/internal/article"
	"tubescribe/internal/config"
	"tubescribe/internal/pipeline"
	"tubescribe/internal/queue"
	"tubescribe/internal/server"
	"tubescribe/internal/youtube"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "tubescribe",
	Short:   "Turn YouTube videos into blog articles",
	Long:    "Tubescribe watches YouTube channels, fetches transcripts, and turns them into publishable blog articles.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		config.LoadEnv()

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("tubescribe", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/tubescribe/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure channels, API keys, and the summarization provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backlog and ledger status",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, err := pipeline.New(cfg)
		if err != nil {
			return err
		}

		entries, err := pipe.Backlog().List()
		if err != nil {
			return err
		}

		var pending, processing, failed int
		for _, e := range entries {
			switch e.Status {
			case queue.StatusPending:
				pending++
			case queue.StatusProcessing:
				processing++
			case queue.StatusFailed:
				failed++
			}
		}

		fmt.Println("Backlog:")
		fmt.Printf("  Pending: %d\n", pending)
		fmt.Printf("  Processing: %d\n", processing)
		fmt.Printf("  Failed: %d\n", failed)
		fmt.Println("\nLedger:")
		fmt.Printf("  Processed videos: %d\n", pipe.Ledger().Len())
		return nil
	},
}

// --- run command ---

var (
	batchSize      int
	retryFailed    bool
	daysWindow     int
	minDuration    int
	keepTimestamps bool
	dryRun         bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Discover new videos and process the backlog",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, err := pipeline.New(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := pipe.Run(ctx, pipeline.Options{
			BatchSize:      batchSize,
			RetryFailed:    retryFailed,
			DaysWindow:     daysWindow,
			MinDurationSec: minDuration * 60,
			KeepTimestamps: keepTimestamps,
			DryRun:         dryRun,
		})
		if err != nil {
			return err
		}

		fmt.Println("\nRun complete:")
		fmt.Printf("  Discovered: %d\n", res.Discovered)
		fmt.Printf("  Enqueued: %d\n", res.Enqueued)
		if res.Reconciled > 0 {
			fmt.Printf("  Requeued after interruption: %d\n", res.Reconciled)
		}
		if res.Retried > 0 {
			fmt.Printf("  Requeued for retry: %d\n", res.Retried)
		}
		fmt.Printf("  Processed: %d\n", res.Processed)
		fmt.Printf("  Published: %d\n", res.Succeeded)
		fmt.Printf("  Skipped: %d\n", res.Skipped)
		fmt.Printf("  Failed: %d\n", res.Failed)

		if res.Failed > 0 {
			return fmt.Errorf("%d videos failed", res.Failed)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().IntVarP(&batchSize, "batch-size", "b", 5, "How many videos to process this run")
	runCmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Requeue failed videos before processing")
	runCmd.Flags().IntVar(&daysWindow, "days", 0, "Override discovery window (days)")
	runCmd.Flags().IntVar(&minDuration, "min-duration", 0, "Override minimum video length (minutes)")
	runCmd.Flags().BoolVar(&keepTimestamps, "keep-timestamps", false, "Keep timestamps in cleaned transcripts")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Discover and enqueue without processing")
}

// --- queue command ---

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the backlog",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backlog entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, err := pipeline.New(cfg)
		if err != nil {
			return err
		}

		entries, err := pipe.Backlog().List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Backlog is empty.")
			return nil
		}

		for _, e := range entries {
			line := fmt.Sprintf("  [%s] %s  %s", e.Status, e.VideoID, e.Title)
			if e.Attempts > 0 {
				line += fmt.Sprintf("  (attempts: %d)", e.Attempts)
			}
			fmt.Println(line)
			if e.LastError != "" {
				fmt.Printf("      last error: %s\n", e.LastError)
			}
		}
		return nil
	},
}

var queueAddCmd = &cobra.Command{
	Use:   "add [url-or-id...]",
	Short: "Add videos to the backlog by URL or id",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, err := pipeline.New(cfg)
		if err != nil {
			return err
		}

		client := youtube.NewClient(cfg.YouTube.APIKeyEnv)
		now := time.Now().UTC().Format(time.RFC3339)

		for _, arg := range args {
			videoID := youtube.ExtractVideoID(arg)
			if videoID == "" {
				return fmt.Errorf("not a YouTube video: %s", arg)
			}

			entry := queue.Entry{VideoID: videoID, PublishedAt: now}
			if client.IsConfigured() {
				info, err := client.VideoInfo(cmd.Context(), videoID)
				if err != nil {
					return err
				}
				entry.Title = info.Title
				entry.Channel = info.Channel
				entry.PublishedAt = info.PublishedAt
			}

			added, err := pipe.Backlog().Enqueue(entry)
			if err != nil {
				return err
			}
			if added {
				fmt.Printf("Queued %s\n", videoID)
			} else {
				fmt.Printf("Skipped %s (already queued or processed)\n", videoID)
			}
		}
		return nil
	},
}

var queueImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Add videos listed in a file, one URL or id per line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, err := pipeline.New(cfg)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		now := time.Now().UTC().Format(time.RFC3339)
		queued, skipped := 0, 0
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			videoID := youtube.ExtractVideoID(line)
			if videoID == "" {
				return fmt.Errorf("not a YouTube video: %s", line)
			}
			added, err := pipe.Backlog().Enqueue(queue.Entry{VideoID: videoID, PublishedAt: now})
			if err != nil {
				return err
			}
			if added {
				queued++
			} else {
				skipped++
			}
		}
		fmt.Printf("Queued %d videos, skipped %d (already queued or processed).\n", queued, skipped)
		return nil
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Requeue failed videos",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, err := pipeline.New(cfg)
		if err != nil {
			return err
		}

		n, err := pipe.Backlog().RetryFailed()
		if err != nil {
			return err
		}
		fmt.Printf("Requeued %d failed videos.\n", n)
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueAddCmd)
	queueCmd.AddCommand(queueImportCmd)
	queueCmd.AddCommand(queueRetryCmd)
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local article preview server",
	RunE: func(cmd *cobra.Command, args []string) error {
		articles, err := article.NewStore(filepath.Join(cfg.GetDataDir(), "summaries"))
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(articles, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}
