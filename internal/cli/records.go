package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/glicoflow/internal/model"
	"github.com/sakif/glicoflow/internal/repository"
	"github.com/sakif/glicoflow/internal/stats"
)

// now is swapped in tests.
var now = time.Now

func (a *app) newAddCmd() *cobra.Command {
	var date, clock string
	cmd := &cobra.Command{
		Use:   "add VALUE",
		Short: "Record a reading in mg/dL (defaults to now)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("value must be a whole number of mg/dL, got %q", args[0])
			}
			t := now()
			if date == "" {
				date = t.Format(model.DateLayout)
			}
			if clock == "" {
				clock = t.Format(model.TimeLayout)
			}

			c, err := a.authedClient()
			if err != nil {
				return err
			}
			rec, err := c.CreateRecord(commandContext(cmd), value, date, clock)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d mg/dL on %s at %s (%s)\n",
				rec.Value, rec.Date, rec.Time, stats.Classify(rec.Value))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "measurement date, YYYY-MM-DD")
	cmd.Flags().StringVar(&clock, "time", "", "measurement time, HH:mm")
	return cmd
}

// filterFlags registers --from/--to on cmd. The server ignores one without the other.
func filterFlags(cmd *cobra.Command, f *repository.RecordFilter) {
	cmd.Flags().StringVar(&f.StartDate, "from", "", "first day, YYYY-MM-DD (inclusive, needs --to)")
	cmd.Flags().StringVar(&f.EndDate, "to", "", "last day, YYYY-MM-DD (inclusive, needs --from)")
}

func (a *app) newListCmd() *cobra.Command {
	var f repository.RecordFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List readings, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authedClient()
			if err != nil {
				return err
			}
			recs, err := c.ListRecords(commandContext(cmd), f)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No readings.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tTIME\tMG/DL\tSTATUS")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.Date, r.Time, r.Value, stats.Classify(r.Value))
			}
			return tw.Flush()
		},
	}
	filterFlags(cmd, &f)
	return cmd
}

func (a *app) newStatsCmd() *cobra.Command {
	var f repository.RecordFilter
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show average, count and last reading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authedClient()
			if err != nil {
				return err
			}
			st, err := c.Stats(commandContext(cmd), f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Average: %d mg/dL\n", st.Average)
			fmt.Fprintf(out, "Count:   %d\n", st.Count)
			fmt.Fprintf(out, "Last:    %d mg/dL\n", st.Last)
			return nil
		},
	}
	filterFlags(cmd, &f)
	return cmd
}

func (a *app) newDailyCmd() *cobra.Command {
	var f repository.RecordFilter
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Show the average of each day, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authedClient()
			if err != nil {
				return err
			}
			st, err := c.Stats(commandContext(cmd), f)
			if err != nil {
				return err
			}
			if len(st.Daily) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No readings.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tAVG\tREADINGS")
			for _, d := range st.Daily {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", d.Date, d.Average, d.Count)
			}
			return tw.Flush()
		},
	}
	filterFlags(cmd, &f)
	return cmd
}

func (a *app) newReportCmd() *cobra.Command {
	var (
		f      repository.RecordFilter
		output string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Save the printable HTML history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authedClient()
			if err != nil {
				return err
			}
			html, err := c.Report(commandContext(cmd), f)
			if err != nil {
				return err
			}
			if output == "-" {
				_, err := cmd.OutOrStdout().Write(html)
				return err
			}
			if err := os.WriteFile(output, html, 0o644); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", output)
			return nil
		},
	}
	filterFlags(cmd, &f)
	cmd.Flags().StringVarP(&output, "output", "o", "glicoflow-report.html", `output file ("-" for stdout)`)
	return cmd
}
