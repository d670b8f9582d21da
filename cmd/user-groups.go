package cmd

import (
	"fmt"

	"github.com/openfleet/fleettrack/internal/authz"
	"github.com/openfleet/fleettrack/internal/config"
	"github.com/openfleet/fleettrack/internal/database"
	"github.com/spf13/cobra"
)

var userGroupsFlags struct {
	AccountID string
	UserID    string
}

var userGroupsCmd = &cobra.Command{
	Use:   "user-groups",
	Short: "Manage the device groups assigned to a user",
}

var userGroupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the device groups a user is authorized for",
	RunE: func(cmd *cobra.Command, _ []string) error {
		resolver, db, err := userGroupsSetup()
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		account, err := resolver.LookupAccount(cmd.Context(), userGroupsFlags.AccountID)
		if err != nil {
			return err
		}
		user, err := resolver.LookupUser(cmd.Context(), userGroupsFlags.AccountID, userGroupsFlags.UserID)
		if err != nil {
			return err
		}

		explicit, err := resolver.ExplicitlyAuthorizedGroupIDs(cmd.Context(), user)
		if err != nil {
			return err
		}
		all, err := resolver.AllAuthorizedGroupIDs(cmd.Context(), account.AccountID, user)
		if err != nil {
			return err
		}

		fmt.Printf("Explicit groups: %v\n", explicit)
		fmt.Printf("Browsable groups: %v\n", all)
		return nil
	},
}

var userGroupsSetCmd = &cobra.Command{
	Use:   "set [groupID]...",
	Short: "Replace the device groups assigned to a user",
	Long: `Replace the explicit device group assignments of a user with the given
list. Group IDs that do not exist for the account are skipped. Passing the
reserved group "all" grants access to every device of the account.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, db, err := userGroupsSetup()
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		account, err := resolver.LookupAccount(cmd.Context(), userGroupsFlags.AccountID)
		if err != nil {
			return err
		}
		user, err := resolver.LookupUser(cmd.Context(), userGroupsFlags.AccountID, userGroupsFlags.UserID)
		if err != nil {
			return err
		}

		if err := resolver.SetDeviceGroups(cmd.Context(), account, user, args); err != nil {
			return err
		}

		groupIDs, err := resolver.ExplicitlyAuthorizedGroupIDs(cmd.Context(), user)
		if err != nil {
			return err
		}
		fmt.Printf("Assigned groups: %v\n", groupIDs)
		return nil
	},
}

func userGroupsSetup() (*authz.Resolver, *database.Client, error) {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return authz.New(db, authz.PolicyFromConfig(cfg.Auth)), db, nil
}

func init() {
	userGroupsCmd.PersistentFlags().StringVar(&userGroupsFlags.AccountID, "account", "", "Account ID (required)")
	userGroupsCmd.PersistentFlags().StringVar(&userGroupsFlags.UserID, "user", "", "User ID (required)")
	_ = userGroupsCmd.MarkPersistentFlagRequired("account")
	_ = userGroupsCmd.MarkPersistentFlagRequired("user")

	userGroupsCmd.AddCommand(userGroupsListCmd)
	userGroupsCmd.AddCommand(userGroupsSetCmd)
	rootCmd.AddCommand(userGroupsCmd)
}
