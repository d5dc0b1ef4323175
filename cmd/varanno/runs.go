package main

import (
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const timeFormat = time.RFC3339

// newTable returns a borderless table writer rendering to w.
func newTable(w io.Writer, header ...any) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false
	tbl.AppendHeader(table.Row(header))
	return tbl
}

func runsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List annotation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, closeDB, err := a.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			runs := db.Runs()
			if err := closeDB(); err != nil {
				return err
			}

			tbl := newTable(cmd.OutOrStdout(),
				"run", "state", "seq", "annotator", "scope", "annotated", "skipped", "started", "error")
			for _, r := range runs {
				tbl.AppendRow(table.Row{
					r.ID, r.State, r.Seq, r.Annotator, r.Scope, r.Annotated, r.Skipped,
					r.StartedAt.Format(timeFormat), r.Error,
				})
			}
			tbl.Render()
			return nil
		},
	}
}

func metadataCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata",
		Short: "Show project annotation metadata as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, closeDB, err := a.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			md, err := db.ProjectMetadata(cmd.Context())
			if cerr := closeDB(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(md)
		},
	}
}
