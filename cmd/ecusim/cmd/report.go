package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/ecusim/datarecording"
	"github.com/sarchlab/ecusim/simulation"
	"github.com/sarchlab/ecusim/tracing"
)

var reportCmd = &cobra.Command{
	Use:   "report [recording.sqlite3]",
	Short: "Summarize a recorded run.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := datarecording.NewReader(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		return report(cmd.Context(), reader, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

type metricSummary struct {
	count int
	max   float64
	sum   float64
}

func report(
	ctx context.Context,
	reader datarecording.DataReader,
	w io.Writer,
) error {
	reader.MapTable(simulation.SampleTable, simulation.SampleEntry{})
	reader.MapTable(tracing.TraceTable, tracing.TraceEntry{})

	for _, part := range []struct {
		table  string
		report func(context.Context, datarecording.DataReader, io.Writer) error
	}{
		{simulation.SampleTable, reportSamples},
		{tracing.TraceTable, reportTraces},
	} {
		found, err := reader.HasTable(ctx, part.table)
		if err != nil {
			return err
		}

		if !found {
			continue
		}

		if err := part.report(ctx, reader, w); err != nil {
			return err
		}
	}

	return nil
}

func reportSamples(
	ctx context.Context,
	reader datarecording.DataReader,
	w io.Writer,
) error {
	results, _, err := reader.Query(ctx, simulation.SampleTable,
		datarecording.QueryParams{OrderBy: "Node, Metric"})
	if err != nil {
		return err
	}

	keys := []string{}
	summaries := make(map[string]*metricSummary)

	for _, r := range results {
		e := r.(*simulation.SampleEntry)
		key := e.Node + " " + e.Metric

		s, ok := summaries[key]
		if !ok {
			s = &metricSummary{max: e.Value}
			summaries[key] = s
			keys = append(keys, key)
		}

		s.count++
		s.sum += e.Value
		s.max = max(s.max, e.Value)
	}

	for _, key := range keys {
		s := summaries[key]
		fmt.Fprintf(w, "%s: %d samples, mean %.2f, max %.0f\n",
			key, s.count, s.sum/float64(s.count), s.max)
	}

	return nil
}

func reportTraces(
	ctx context.Context,
	reader datarecording.DataReader,
	w io.Writer,
) error {
	for _, kind := range []string{
		tracing.KindFrame,
		tracing.KindFrameFiltered,
		tracing.KindSegmentFiltered,
		tracing.KindReassemblyTimeout,
		tracing.KindMessage,
	} {
		_, total, err := reader.Query(ctx, tracing.TraceTable,
			datarecording.QueryParams{
				Where: "Kind = ?",
				Args:  []any{kind},
				Limit: 1,
			})
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%s: %d\n", kind, total)
	}

	return nil
}
