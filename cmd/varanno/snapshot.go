package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/hupe1980/varanno"
)

func saveCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "save NAME",
		Short: "Save the current view as a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := a.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			meta, err := db.SaveAnnotation(cmd.Context(), args[0], varanno.SaveOptions{Force: force})
			if cerr := closeDB(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (run %s)\n", meta.Name, meta.RunID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "replace an existing snapshot of the same name")

	return cmd
}

func deleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := a.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			err = db.DeleteAnnotation(cmd.Context(), args[0])
			if cerr := closeDB(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func snapshotsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List saved snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, closeDB, err := a.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			snaps, err := db.Snapshots(cmd.Context())
			if cerr := closeDB(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}

			tbl := newTable(cmd.OutOrStdout(), "name", "run", "annotator", "created")
			for _, s := range snaps {
				tbl.AppendRow(table.Row{s.Name, s.RunID, s.Annotator, s.CreatedAt.Format(timeFormat)})
			}
			tbl.Render()
			return nil
		},
	}
}
