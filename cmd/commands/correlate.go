/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/


package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/numaproj/parksession/pkg/correlate"
	"github.com/numaproj/parksession/pkg/events"
	"github.com/numaproj/parksession/pkg/export"
	"github.com/numaproj/parksession/pkg/normalize"
	"github.com/numaproj/parksession/pkg/session"
	sharedutil "github.com/numaproj/parksession/pkg/shared/util"
)

const outputTable = "table"

func NewCorrelateCommand() *cobra.Command {
	var (
		input     string
		tolerance time.Duration
		policy    string
		output    string
		layouts   string
	)

	command := &cobra.Command{
		Use:   "correlate",
		Short: "Reconstruct sessions from an event file and print them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				return fmt.Errorf("--input is required")
			}
			p, err := correlate.ParseMatchPolicy(policy)
			if err != nil {
				return err
			}
			if tolerance <= 0 {
				return fmt.Errorf("tolerance must be positive, got %v", tolerance)
			}
			out := cmd.OutOrStdout()
			if output == "" {
				output = defaultOutput(out)
			}

			batch, err := readEvents(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			n := normalize.New(normalize.WithLayouts(sharedutil.SplitList(layouts)...))
			parsed, st := n.Normalize(batch.Events)
			sessions := correlate.NewEngine(correlate.WithTolerance(tolerance), correlate.WithMatchPolicy(p)).Correlate(parsed)
			if st.Dropped() > 0 || batch.Skipped > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %d undecodable records, dropped %v\n", batch.Skipped, st.DropsByReason())
			}

			switch output {
			case outputTable:
				return writeTable(out, sessions)
			default:
				f, err := export.ParseFormat(output)
				if err != nil {
					return fmt.Errorf("unsupported output %q", output)
				}
				return export.Write(out, f, sessions)
			}
		},
	}
	command.Flags().StringVarP(&input, "input", "i", "", "Event file to read, csv or jsonl by extension, \"-\" for jsonl on stdin.")
	command.Flags().DurationVar(&tolerance, "tolerance", correlate.DefaultTolerance, "Longest stay an exit may close.")
	command.Flags().StringVar(&policy, "policy", string(correlate.MatchNearest), "Match policy, nearest or exclusive.")
	command.Flags().StringVarP(&output, "output", "o", "", "Output format, table, csv or jsonl. Defaults to table on a terminal and jsonl otherwise.")
	command.Flags().StringVar(&layouts, "timestamp-layouts", "", "Comma separated Go time layouts tried before the built-in ones.")
	return command
}

func defaultOutput(w io.Writer) string {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return outputTable
	}
	return string(export.FormatJSONL)
}

func readEvents(stdin io.Reader, input string) (events.Batch, error) {
	if input == "-" {
		return events.Read(stdin, events.EncodingJSONL)
	}
	f, err := os.Open(input)
	if err != nil {
		return events.Batch{}, fmt.Errorf("failed to open %q, %w", input, err)
	}
	defer f.Close()
	return events.Read(f, events.EncodingFromName(input))
}

func writeTable(w io.Writer, sessions []session.Session) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTRY ID\tPLATE\tENTRY TIME\tENTRY GATE\tEXIT ID\tEXIT TIME\tEXIT GATE\tDURATION")
	for _, s := range sessions {
		exitID, exitTime, duration := "-", "-", "-"
		if s.Matched() {
			exitID = fmt.Sprint(s.ExitID)
			exitTime = s.ExitTime.UTC().Format(time.RFC3339)
			duration = s.Duration().String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.EntryID, s.Plate, s.EntryTime.UTC().Format(time.RFC3339), s.EntryGate, exitID, exitTime, orDash(s.ExitGate), duration)
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
