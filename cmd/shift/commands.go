package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/uav-shift/backend/internal/export"
	"github.com/uav-shift/backend/internal/models"
	"github.com/uav-shift/backend/internal/parser"
)

func newSetsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sets",
		Short: "Print the flight sets found in the images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := opts.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer sess.Close()

			warnDiagnostics(cmd.ErrOrStderr(), sess.Diagnostics())
			printSets(cmd.OutOrStdout(), sess.SetSummaries())
			return nil
		},
	}
}

func newCorrectCmd(opts *rootOptions) *cobra.Command {
	var (
		correctionsPath string
		overridesPath   string
		sets            string
		outPath         string
	)

	cmd := &cobra.Command{
		Use:   "correct",
		Short: "Shift each flight set by its ground-control delta",
		Long: `correct matches every flight set with the most recent correction entry
recorded before the set started, adds that delta to every image in the set
and writes the result as CSV. Sets without a qualifying entry keep their
original positions. An overrides file replaces the delta of individual sets.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := parseSetNumbers(sets)
			if err != nil {
				return err
			}

			sess, cfg, err := opts.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer sess.Close()

			stderr := cmd.ErrOrStderr()
			res, err := sess.LoadCorrectionsFile(correctionsPath)
			if err != nil {
				return err
			}
			if overridesPath != "" {
				o, err := parser.ParseOverrides(overridesPath)
				if err != nil {
					return err
				}
				if err := sess.ApplyOverrides(o); err != nil {
					return err
				}
			}

			warnDiagnostics(stderr, sess.Diagnostics())
			if len(res.UnusedIDs) > 0 {
				fmt.Fprintf(stderr, "warning: %d correction entries matched no set: %s\n",
					len(res.UnusedIDs), strings.Join(res.UnusedIDs, ", "))
			}

			rows, err := sess.Positions(models.ModeDelta, selected)
			if err != nil {
				return err
			}
			if err := export.WriteCSVFile(outPath, rows, cfg.ExportFormat(models.ModeDelta)); err != nil {
				return err
			}

			printSets(cmd.OutOrStdout(), sess.SetSummaries())
			fmt.Fprintf(cmd.OutOrStdout(), "\nWrote %d positions to %s\n", len(rows), outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&correctionsPath, "corrections", "c", "", "correction CSV (Point Id, Date/Time, deltaLat, deltaLong, deltah)")
	cmd.Flags().StringVar(&overridesPath, "overrides", "", "YAML file with manual per-set deltas")
	cmd.Flags().StringVar(&sets, "sets", "", "comma-separated set numbers to export, starting at 1 (default: all)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output CSV")
	cmd.MarkFlagRequired("corrections")
	cmd.MarkFlagRequired("out")
	return cmd
}

func newPPKCmd(opts *rootOptions) *cobra.Command {
	var (
		ppkPaths []string
		sets     string
		outPath  string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "ppk",
		Short: "Interpolate image positions from a PPK track",
		Long: `ppk resolves the position of every image by linear interpolation between
the two PPK fixes bracketing its capture instant. Several PPK logs are merged
into one track. Images outside the track are skipped with a warning.

Interrupting the run (Ctrl-C) cancels it and no output is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "csv", "msgpack":
			default:
				return fmt.Errorf("unknown format %q (csv or msgpack)", format)
			}
			selected, err := parseSetNumbers(sets)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess, cfg, err := opts.openSession(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer sess.Close()

			stderr := cmd.ErrOrStderr()
			if err := sess.LoadPPKFiles(ppkPaths...); err != nil {
				return err
			}

			res, err := sess.Interpolate(ctx, selected, progressPrinter(stderr))
			if err != nil {
				return err
			}
			if res.Cancelled {
				return context.Canceled
			}

			warnDiagnostics(stderr, sess.Diagnostics())

			rows, err := sess.Positions(models.ModePPK, nil)
			if err != nil {
				return err
			}
			if format == "msgpack" {
				err = export.WriteMsgpackFile(outPath, rows)
			} else {
				err = export.WriteCSVFile(outPath, rows, cfg.ExportFormat(models.ModePPK))
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Interpolated %d of %d images, wrote %s\n", len(rows), res.Total, outPath)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&ppkPaths, "ppk", nil, "PPK track CSV (repeat to merge several logs)")
	cmd.Flags().StringVar(&sets, "sets", "", "comma-separated set numbers to interpolate, starting at 1 (default: all)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file")
	cmd.Flags().StringVar(&format, "format", "csv", "output format (csv, msgpack)")
	cmd.MarkFlagRequired("ppk")
	cmd.MarkFlagRequired("out")
	return cmd
}

// printSets writes the set summary table
func printSets(w io.Writer, sets []models.SetSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SET\tSTART\tEND\tIMAGES\tDELTA LAT\tDELTA LON\tDELTA ALT\tSOURCE")
	for _, s := range sets {
		source := s.Source
		if source == "" {
			source = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.9f\t%.9f\t%.3f\t%s\n",
			s.Index+1,
			s.Start.Format(time.DateTime),
			s.End.Format(time.DateTime),
			s.ImageCount,
			s.Delta.Lat, s.Delta.Lon, s.Delta.Alt,
			source)
	}
	tw.Flush()
}

// progressPrinter reports interpolation progress at every 10 percent
func progressPrinter(w io.Writer) func(processed, total int) {
	last := -10
	return func(processed, total int) {
		if total == 0 {
			return
		}
		pct := processed * 100 / total
		if pct/10 == last/10 && processed != total {
			return
		}
		last = pct
		fmt.Fprintf(w, "\rInterpolating... %3d%% (%d/%d)", pct, processed, total)
		if processed == total {
			fmt.Fprintln(w)
		}
	}
}
