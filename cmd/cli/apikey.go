// Package cli provides command-line interface commands for portsweep.
// This file implements API key commands that produce the bcrypt hash the API
// server checks keys against.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/portsweep/internal/auth"
)

var apiKeyOutput string

// apiKeyCmd represents the apikey command group
var apiKeyCmd = &cobra.Command{
	Use:     "apikey",
	Aliases: []string{"apikeys", "key"},
	Short:   "Generate and hash API keys",
	Long: `Generate API keys for the portsweep API server.

The server stores only a bcrypt hash of its key in api.api_key_hash
(or PORTSWEEP_API_API_KEY_HASH). Clients send the key in the X-API-Key
header, as a bearer token, or as the api_key query parameter.`,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// apiKeyGenerateCmd creates a new API key
var apiKeyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new API key and its hash",
	Long: `Generate a new random API key.

The key is displayed only once. Put the hash in the server configuration
and give the key to clients.`,
	Example: `  portsweep apikey generate
  portsweep apikey generate --output json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		key, err := auth.GenerateAPIKey()
		if err != nil {
			return err
		}
		return displayAPIKey(cmd.OutOrStdout(), key, apiKeyOutput)
	},
}

// apiKeyHashCmd hashes an existing key
var apiKeyHashCmd = &cobra.Command{
	Use:     "hash <key>",
	Short:   "Hash an existing API key",
	Example: `  portsweep apikey hash ps_abcdefghijklmnopqrstuvwxyz234567`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !auth.IsValidAPIKeyFormat(args[0]) {
			return fmt.Errorf("invalid API key format")
		}
		hash, err := auth.HashAPIKey(args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
		return err
	},
}

func init() {
	rootCmd.AddCommand(apiKeyCmd)
	apiKeyCmd.AddCommand(apiKeyGenerateCmd)
	apiKeyCmd.AddCommand(apiKeyHashCmd)

	apiKeyGenerateCmd.Flags().StringVarP(&apiKeyOutput, "output", "o", "table", "Output format: table or json")
}

func displayAPIKey(w io.Writer, key *auth.GeneratedAPIKey, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(key)
	case "table", "":
		table := tablewriter.NewWriter(w)
		table.Header("Field", "Value")
		_ = table.Append([]string{"Key", key.Key})
		_ = table.Append([]string{"Hash", key.Hash})
		_ = table.Append([]string{"Prefix", key.KeyPrefix})
		if err := table.Render(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "\nStore the key now; it cannot be recovered.\n"+
			"Server config:\n  api:\n    api_key_hash: %q\n", key.Hash)
		return err
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
