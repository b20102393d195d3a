package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/signalwatch/signalwatch/internal/alert"
	"github.com/signalwatch/signalwatch/internal/config"
	"github.com/signalwatch/signalwatch/internal/database"
	"github.com/signalwatch/signalwatch/internal/notify"
	"github.com/signalwatch/signalwatch/internal/pipeline"
	"github.com/signalwatch/signalwatch/internal/scheduler"
	"github.com/signalwatch/signalwatch/internal/server"
	"github.com/spf13/cobra"
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
	Use:     "signalwatch",
	Short:   "Market-moving news alerts from the global event feed",
	Long:    "Signalwatch polls the minute-partitioned global quote feed, scores relevant stories for stock impact, and emails digest alerts to subscribers.",
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

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(subscribersCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("signalwatch", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/signalwatch/",
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
		fmt.Println("Edit it to configure the feed, reasoning API key, and SMTP account.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Analyses:")
		fmt.Printf("  Total stored: %d\n", stats.Analyses)
		if stats.LatestAnalysis > 0 {
			fmt.Printf("  Latest: %s\n", time.Unix(stats.LatestAnalysis, 0).UTC().Format("2006-01-02 15:04 UTC"))
		} else {
			fmt.Println("  Latest: never")
		}
		fmt.Println("\nArticles:")
		fmt.Printf("  Total collected: %d\n", stats.Articles)
		fmt.Println("\nSubscribers:")
		fmt.Printf("  Total: %d\n", stats.Subscribers)
		fmt.Println("\nErrors:")
		fmt.Printf("  Recorded artifacts: %d\n", stats.ReasoningErrors)
		return nil
	},
}

// --- scan command ---

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one ingestion cycle: collect -> ingest -> score",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := pipeline.New(cfg, db)
		result := pipe.Run(context.Background())

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}
		return nil
	},
}

// --- notify command ---

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Run one alert cycle over all subscribers",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		engine := alert.NewEngine(db, newSender())
		result := engine.Run()

		fmt.Printf("Subscribers: %d\n", result.Subscribers)
		fmt.Printf("  Sent: %d\n", result.Sent)
		fmt.Printf("  Skipped: %d\n", result.Skipped)
		fmt.Printf("  Failed: %d\n", result.Failed)
		return nil
	},
}

// --- run command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run ingestion and alert cycles continuously until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pipe := pipeline.New(cfg, db)
		engine := alert.NewEngine(db, newSender())

		sched := scheduler.New(
			scheduler.Job{
				Name:     "ingestion cycle",
				Interval: time.Duration(cfg.Feed.IntervalSeconds) * time.Second,
				Run: func(ctx context.Context) {
					result := pipe.Run(ctx)
					for _, step := range result.Steps {
						if step.Err != nil {
							log.Printf("%s failed: %v", step.Name, step.Err)
						}
					}
				},
			},
			scheduler.Job{
				Name:     "alert cycle",
				Interval: time.Duration(cfg.Alerts.IntervalMinutes) * time.Minute,
				Run: func(context.Context) {
					result := engine.Run()
					log.Printf("Alert cycle: %d sent, %d skipped, %d failed",
						result.Sent, result.Skipped, result.Failed)
				},
			},
		)

		fmt.Println("Running. Press Ctrl+C to stop.")
		sched.Run(ctx)
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local dashboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- subscribers command ---

var subscribersCmd = &cobra.Command{
	Use:   "subscribers",
	Short: "Manage alert subscribers",
}

var subscribersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all subscribers",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		subs, err := db.GetSubscribers()
		if err != nil {
			return err
		}

		if len(subs) == 0 {
			fmt.Println("No subscribers. Add one with: signalwatch subscribers add")
			return nil
		}

		fmt.Println("Subscribers:")
		fmt.Println()
		for _, s := range subs {
			last := "never"
			if s.LastSent > 0 {
				last = time.Unix(s.LastSent, 0).UTC().Format("2006-01-02 15:04 UTC")
			}
			fmt.Printf("  %s  threshold %d/10  every %dh  last sent %s\n",
				s.Email, s.Threshold, s.FrequencyHours, last)
		}
		return nil
	},
}

var (
	subThreshold int
	subFrequency int
)

var subscribersAddCmd = &cobra.Command{
	Use:   "add [email]",
	Short: "Add or update a subscriber",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		email := args[0]
		if err := db.UpsertSubscriber(email, subThreshold, subFrequency); err != nil {
			return err
		}
		fmt.Printf("Subscribed %s at threshold %d/10\n", email, subThreshold)
		return nil
	},
}

var subscribersRemoveCmd = &cobra.Command{
	Use:   "remove [email]",
	Short: "Remove a subscriber",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		email := args[0]
		sub, err := db.GetSubscriber(email)
		if err != nil {
			return err
		}
		if sub == nil {
			return fmt.Errorf("subscriber %s not found", email)
		}

		if err := db.RemoveSubscriber(email); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", email)
		return nil
	},
}

var subscribersSetCmd = &cobra.Command{
	Use:   "set [email] [threshold]",
	Short: "Change a subscriber's alert threshold",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		email := args[0]
		threshold, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid threshold: %s", args[1])
		}

		sub, err := db.GetSubscriber(email)
		if err != nil {
			return err
		}
		if sub == nil {
			return fmt.Errorf("subscriber %s not found", email)
		}

		if err := db.UpsertSubscriber(email, threshold, sub.FrequencyHours); err != nil {
			return err
		}
		fmt.Printf("Set %s threshold to %d/10\n", email, threshold)
		return nil
	},
}

func init() {
	subscribersAddCmd.Flags().IntVar(&subThreshold, "threshold", 7, "Minimum likelihood (1-10) to alert on")
	subscribersAddCmd.Flags().IntVar(&subFrequency, "frequency", 24, "Hours between digests")

	subscribersCmd.AddCommand(subscribersListCmd)
	subscribersCmd.AddCommand(subscribersAddCmd)
	subscribersCmd.AddCommand(subscribersRemoveCmd)
	subscribersCmd.AddCommand(subscribersSetCmd)
}

func newSender() *notify.Sender {
	mailer := notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.PasswordEnv)
	return notify.NewSender(mailer)
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "signalwatch.db")
	return database.Open(dbPath)
}
