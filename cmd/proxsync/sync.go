package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/database/repositories"
	"github.com/proxsync/proxsync/pkg/syncer"
)

var syncConnectionID uint

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync Proxmox clusters once",
	Long: `Sync every configured Proxmox connection, or only the one given with
--connection. Each connection is reported on its own; a failed connection
does not stop the others.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		conns, err := repositories.NewConnectionRepository(db.DB).List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list connections: %w", err)
		}

		return runSync(ctx, cmd.OutOrStdout(), syncer.New(db.DB, cfg.Sync, nil), conns, syncConnectionID)
	},
}

func init() {
	syncCmd.Flags().UintVar(&syncConnectionID, "connection", 0, "ID of the connection to sync")
}

type connectionSyncer interface {
	SyncConnection(ctx context.Context, id uint) (*syncer.Result, error)
	SyncAll(ctx context.Context) (*syncer.SweepReport, error)
}

// runSync syncs conns, or only the connection with ID only when it is
// non-zero, and reports each outcome to out. A full run goes through one
// sweep so sibling tags are read once.
func runSync(ctx context.Context, out io.Writer, s connectionSyncer, conns []models.Connection, only uint) error {
	var selected []models.Connection
	for _, conn := range conns {
		if only == 0 || conn.ID == only {
			selected = append(selected, conn)
		}
	}
	if len(selected) == 0 {
		fmt.Fprintln(out, "No Proxmox connections found.")
		return nil
	}
	for i := range selected {
		fmt.Fprintf(out, "Syncing connection: %s (ID: %d)\n", &selected[i], selected[i].ID)
	}

	var report *syncer.SweepReport
	if only != 0 {
		report = &syncer.SweepReport{}
		result, err := s.SyncConnection(ctx, only)
		if err != nil {
			report.Failures = append(report.Failures, syncer.Failure{ConnectionID: only, Error: err.Error()})
		} else {
			report.Results = append(report.Results, result)
		}
	} else {
		var err error
		if report, err = s.SyncAll(ctx); err != nil {
			return err
		}
	}

	for _, result := range report.Results {
		fmt.Fprintf(out, "Successfully synced connection %d (%s)\n", result.ConnectionID, summarize(result))
	}
	for _, failure := range report.Failures {
		fmt.Fprintf(out, "Failed to sync connection %d: %s\n", failure.ConnectionID, failure.Error)
	}

	if len(report.Failures) > 0 {
		return fmt.Errorf("%d of %d connections failed to sync", len(report.Failures), len(selected))
	}
	return nil
}

func summarize(r *syncer.Result) string {
	created, updated, deleted := r.Counts()
	return fmt.Sprintf("%d created, %d updated, %d deleted, %d errors, %d warnings",
		created, updated, deleted, len(r.Errors()), len(r.Warnings()))
}
