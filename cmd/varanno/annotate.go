package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/varanno"
	"github.com/hupe1980/varanno/annotator"
	"github.com/hupe1980/varanno/query"
)

func annotateCmd(a *app) *cobra.Command {
	var (
		runID     string
		regions   string
		ids       string
		overwrite bool
		cfg       annotator.Config
	)

	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Run an annotator over the selected variants",
		Long: `Run an annotator over the variants selected by --region or --ids (all
variants when neither is set) and commit the result as a new run.

Variants already annotated by an earlier run, or a different annotator than
the one of the current view, require --overwrite.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := parseQuery(regions, ids)
			if err != nil {
				return err
			}

			db, closeDB, err := a.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			s, err := db.Annotate(cmd.Context(), varanno.AnnotateRequest{
				RunID:     varanno.RunID(runID),
				Query:     q,
				Annotator: cfg,
				Overwrite: overwrite,
			})
			if cerr := closeDB(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "run %s %s: %d annotated, %d skipped, %d batches in %s\n",
				s.RunID, s.State, s.Annotated, s.Skipped, s.Batches, s.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "run id (generated when empty)")
	cmd.Flags().StringVar(&regions, "region", "", "comma separated regions, e.g. 1:100-200,X")
	cmd.Flags().StringVar(&ids, "ids", "", "comma separated variant ids, e.g. 1:100:A:C")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing annotations")
	cmd.Flags().StringVar(&cfg.Engine, "engine", "cellbase", "annotator engine")
	cmd.Flags().StringVar(&cfg.Name, "name", "", "annotator name")
	cmd.Flags().StringVar(&cfg.Version, "version", "", "annotator version")
	cmd.Flags().IntVar(&cfg.DataRelease, "data-release", 0, "annotator data release")
	cmd.Flags().StringSliceVar(&cfg.Extensions, "extension", nil, "private source extension applied after the annotator, e.g. hgmd (repeatable)")
	cmd.Flags().StringToStringVar(&cfg.Options, "option", nil, "annotator option key=value (repeatable)")

	return cmd
}

// parseQuery combines a region list and an id list into one query.
func parseQuery(regions, ids string) (query.Query, error) {
	q, err := query.Parse(regions)
	if err != nil {
		return query.Query{}, err
	}
	byID, err := query.ParseIDs(ids)
	if err != nil {
		return query.Query{}, err
	}
	q.IDs = byID.IDs
	return q, nil
}
