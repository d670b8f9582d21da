package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/openfleet/fleettrack/internal/config"
	"github.com/openfleet/fleettrack/internal/database"
	"github.com/spf13/cobra"
)

var dbStatsCmd = &cobra.Command{
	Use:   "db-stats",
	Short: "Show database statistics",
	Long:  `Display row counts for accounts, users, devices, device groups and assignments.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		db, err := database.New(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close() //nolint:errcheck

		stats, err := db.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get database stats: %w", err)
		}

		fmt.Println("Database Statistics:")
		fmt.Printf("Accounts: %s\n", humanize.Comma(stats.Accounts))
		fmt.Printf("Users: %s\n", humanize.Comma(stats.Users))
		fmt.Printf("Devices: %s\n", humanize.Comma(stats.Devices))
		fmt.Printf("Device Groups: %s\n", humanize.Comma(stats.DeviceGroups))
		fmt.Printf("Group Members: %s\n", humanize.Comma(stats.GroupMembers))
		fmt.Printf("Group Assignments: %s\n", humanize.Comma(stats.GroupAssignments))
		fmt.Printf("Transports: %s\n", humanize.Comma(stats.Transports))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbStatsCmd)
}
