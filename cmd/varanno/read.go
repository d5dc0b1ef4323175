package main

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hupe1980/varanno"
	"github.com/hupe1980/varanno/query"
)

func getCmd(a *app) *cobra.Command {
	var (
		selector string
		run      string
		regions  string
		ids      string
		include  string
		exclude  string
		opts     varanno.ReadOptions
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Read annotations as JSON lines",
		Long: `Read the annotations of the selected variants from the current view
(default), a snapshot, or exactly as written by one run (--run). One JSON
object is written per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sel, err := varanno.ParseSelector(selector)
			if err != nil {
				return err
			}
			q, err := parseQuery(regions, ids)
			if err != nil {
				return err
			}
			opts.Projection = query.Projection{Include: splitList(include), Exclude: splitList(exclude)}

			db, closeDB, err := a.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			results := db.GetAnnotation(cmd.Context(), sel, q, opts)
			if run != "" {
				results = db.RunAnnotations(cmd.Context(), varanno.RunID(run), q, opts)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for ann, rerr := range results {
				if rerr != nil {
					err = rerr
					break
				}
				if err = enc.Encode(ann); err != nil {
					break
				}
			}
			if cerr := closeDB(); err == nil {
				err = cerr
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&selector, "selector", "s", "CURRENT", "CURRENT or a snapshot name")
	cmd.Flags().StringVar(&run, "run", "", "read the payloads written by this run")
	cmd.Flags().StringVar(&regions, "region", "", "comma separated regions")
	cmd.Flags().StringVar(&ids, "ids", "", "comma separated variant ids")
	cmd.MarkFlagsMutuallyExclusive("selector", "run")
	cmd.Flags().StringVar(&include, "include", "", "comma separated payload fields to return")
	cmd.Flags().StringVar(&exclude, "exclude", "", "comma separated payload fields to drop")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of results (0 = unlimited)")
	cmd.Flags().IntVar(&opts.Skip, "skip", 0, "number of results to skip")

	return cmd
}

func countCmd(a *app) *cobra.Command {
	var (
		selector string
		regions  string
		ids      string
	)

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count annotated variants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sel, err := varanno.ParseSelector(selector)
			if err != nil {
				return err
			}
			q, err := parseQuery(regions, ids)
			if err != nil {
				return err
			}

			db, closeDB, err := a.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			n, err := db.CountAnnotated(cmd.Context(), sel, q)
			if cerr := closeDB(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&selector, "selector", "s", "CURRENT", "CURRENT or a snapshot name")
	cmd.Flags().StringVar(&regions, "region", "", "comma separated regions")
	cmd.Flags().StringVar(&ids, "ids", "", "comma separated variant ids")

	return cmd
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
