package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var generateAPIKeyCmd = &cobra.Command{
	Use:   "generate-api-key",
	Short: "Generate a random API key",
	Long:  `Generate a random API key for the api_key configuration value.`,
	Run: func(_ *cobra.Command, _ []string) {
		key := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
		fmt.Println("Add the following to your config file:")
		fmt.Printf("api_key: %q\n", key)
	},
}

func init() {
	rootCmd.AddCommand(generateAPIKeyCmd)
}
