package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/proxsync/proxsync/pkg/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token",
	Long: `Issue a signed API token for the REST API. Permissions are a comma
separated subset of read, write and sync.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		perms, _ := cmd.Flags().GetString("permissions")

		permissions, err := parsePermissions(perms)
		if err != nil {
			return err
		}

		token, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry).Generate(subject, permissions)
		if err != nil {
			return fmt.Errorf("failed to generate token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("subject", "admin", "Subject the token is issued to")
	tokenCmd.Flags().String("permissions", strings.Join(auth.AllPermissions, ","), "Granted permissions")
}

func parsePermissions(s string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		valid := false
		for _, known := range auth.AllPermissions {
			if p == known {
				valid = true
				break
			}
		}
		if !valid {
			return nil, fmt.Errorf("unknown permission %q", p)
		}
		seen[p] = true
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one permission is required")
	}
	return out, nil
}
