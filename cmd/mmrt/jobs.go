package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/managemate/mmrt/pkg/bus"
	"github.com/managemate/mmrt/pkg/conflict"
	"github.com/managemate/mmrt/pkg/digest"
	"github.com/managemate/mmrt/pkg/storage"
	"github.com/spf13/cobra"
)

var detectConflictsCmd = &cobra.Command{
	Use:   "detect-conflicts",
	Short: "Run one conflict detection pass and exit",
	Long: `Run one conflict detection pass against the task store and publish
the resulting transitions, then print a summary as JSON.

Useful from cron when the serve process runs with jobs disabled, or to
re-check after a bulk import.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()

		rdb, err := bus.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Jobs.ConflictInterval)
		defer cancel()

		res, err := conflict.NewDetector(store, bus.NewPublisher(rdb), cfg.Jobs.PageSize).Run(ctx)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Send one round of critical notification emails and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()

		m, err := newMailer(cfg)
		if err != nil {
			return err
		}

		res, err := digest.New(store, m).Run(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func init() {
	rootCmd.AddCommand(detectConflictsCmd)
	rootCmd.AddCommand(digestCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
