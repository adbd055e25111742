package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/database/repositories"
	"github.com/proxsync/proxsync/pkg/proxmox"
)

var connectionCmd = &cobra.Command{
	Use:     "connection",
	Aliases: []string{"connections", "conn"},
	Short:   "Manage Proxmox connections",
}

var connectionAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a Proxmox connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		cluster, _ := cmd.Flags().GetString("cluster")
		domain, _ := cmd.Flags().GetString("domain")
		port, _ := cmd.Flags().GetInt("port")
		user, _ := cmd.Flags().GetString("user")
		tokenID, _ := cmd.Flags().GetString("token-id")
		tokenSecret, _ := cmd.Flags().GetString("token-secret")
		verifySSL, _ := cmd.Flags().GetBool("verify-ssl")

		db, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		conn := &models.Connection{
			Host:        domain,
			Port:        port,
			User:        user,
			TokenID:     tokenID,
			TokenSecret: tokenSecret,
			VerifySSL:   verifySSL,
		}
		if err := repositories.NewConnectionRepository(db.DB).Create(cmd.Context(), cluster, conn); err != nil {
			return fmt.Errorf("failed to create connection: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Connection %d created for cluster %s\n", conn.ID, cluster)
		return nil
	},
}

var connectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List Proxmox connections",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		conns, err := repositories.NewConnectionRepository(db.DB).List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list connections: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCLUSTER\tDOMAIN\tPORT\tTOKEN\tVERIFY SSL")
		for _, conn := range conns {
			cluster := ""
			if conn.Cluster != nil {
				cluster = conn.Cluster.Name
			}
			token := proxmox.Config{User: conn.User, TokenID: conn.TokenID}.TokenName()
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%t\n", conn.ID, cluster, conn.Host, conn.Port, token, conn.VerifySSL)
		}
		return w.Flush()
	},
}

var connectionDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a Proxmox connection. Synced records are kept.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid connection ID %q", args[0])
		}

		db, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		if err := repositories.NewConnectionRepository(db.DB).Delete(cmd.Context(), uint(id)); err != nil {
			return fmt.Errorf("failed to delete connection %d: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Connection %d deleted\n", id)
		return nil
	},
}

func init() {
	connectionAddCmd.Flags().String("cluster", "", "Name of the cluster record the connection syncs into")
	connectionAddCmd.Flags().String("domain", "", "Host name or address of the Proxmox API")
	connectionAddCmd.Flags().Int("port", proxmox.DefaultPort, "Port of the Proxmox API")
	connectionAddCmd.Flags().String("user", "", "API user, e.g. root@pam")
	connectionAddCmd.Flags().String("token-id", "", "API token ID")
	connectionAddCmd.Flags().String("token-secret", "", "API token secret")
	connectionAddCmd.Flags().Bool("verify-ssl", true, "Verify the TLS certificate of the Proxmox API")
	for _, name := range []string{"cluster", "domain", "user", "token-id", "token-secret"} {
		_ = connectionAddCmd.MarkFlagRequired(name)
	}

	connectionCmd.AddCommand(connectionAddCmd)
	connectionCmd.AddCommand(connectionListCmd)
	connectionCmd.AddCommand(connectionDeleteCmd)
}
