package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strandly/edgeguard/adapters/hasher"
)

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token <token>",
	Short: "Hash an admin bypass token for the config file",
	Long: `Hash an admin bypass token with bcrypt.

Put the output in identity.admin_token_hash; the plaintext token then
grants bypass via the x-admin-token header. Intended for internal
testing deployments only.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := hasher.HashSecret(args[0])
		if err != nil {
			return fmt.Errorf("hash token: %w", err)
		}
		fmt.Println(string(hash))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashTokenCmd)
}
