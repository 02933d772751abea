package main

import (
	"fmt"
	"os"

	"github.com/managemate/mmrt/pkg/config"
	"github.com/managemate/mmrt/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mmrt",
	Short: "mmrt - Manage Mate realtime notification service",
	Long: `mmrt delivers task-assignment, chat and schedule-conflict events to
connected browsers over WebSocket.

Producers publish events to Redis channels; every mmrt process holds one
subscription and fans events out to the rooms its connections joined.
The same binary runs the conflict detection and email digest jobs.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"mmrt version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "YAML config file")
	flags.String("redis-url", "", "Redis URL (overrides REDIS_URL)")
	flags.String("data-dir", "", "Directory holding the task store")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Emit JSON logs")
}

// loadConfig layers flags over file and environment settings, validates
// the result and initializes logging
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("redis-url") {
		cfg.RedisURL, _ = flags.GetString("redis-url")
	}
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON, _ = flags.GetBool("log-json")
	}
	if flags.Lookup("http-addr") != nil && flags.Changed("http-addr") {
		cfg.HTTPAddr, _ = flags.GetString("http-addr")
	}
	if flags.Lookup("grpc-addr") != nil && flags.Changed("grpc-addr") {
		cfg.GRPCAddr, _ = flags.GetString("grpc-addr")
	}
	if flags.Lookup("require-auth") != nil && flags.Changed("require-auth") {
		cfg.Auth.Required, _ = flags.GetBool("require-auth")
	}
	if flags.Lookup("conflict-interval") != nil && flags.Changed("conflict-interval") {
		cfg.Jobs.ConflictInterval, _ = flags.GetDuration("conflict-interval")
	}
	if flags.Lookup("no-digest") != nil && flags.Changed("no-digest") {
		noDigest, _ := flags.GetBool("no-digest")
		cfg.Jobs.DigestEnabled = !noDigest
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Init(cfg.LogSettings())
	return cfg, nil
}
