package main

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

var showFlags struct {
	reportID int64
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a pre-report with per-step progress",
	RunE:  runShow,
}

var stepFlags struct {
	reportID int64
	file     string
	sets     []string
}

var stepCmd = &cobra.Command{
	Use:   "step <number>",
	Short: "Show one step, or save it when a payload is given",
	Long: "Without --file or --set, prints the step's fields and saved values.\n" +
		"With a payload, saves the step without moving the wizard.",
	Example: "  prereport step 2\n" +
		"  prereport step 2 --file step2.yaml\n" +
		"  prereport step 4 --set remarks='Verified at site' --set siteVisited=true",
	Args: cobra.ExactArgs(1),
	RunE: runStep,
}

func init() {
	showCmd.Flags().Int64Var(&showFlags.reportID, "report", 0, "Report ID (defaults to the active report)")

	f := stepCmd.Flags()
	f.Int64Var(&stepFlags.reportID, "report", 0, "Report ID (defaults to the active report)")
	f.StringVarP(&stepFlags.file, "file", "f", "", "YAML or JSON payload file, - for stdin")
	f.StringArrayVar(&stepFlags.sets, "set", nil, "Field override key=value, repeatable")
}

func runShow(cmd *cobra.Command, _ []string) error {
	return run(cmd, func(e *env) error {
		id, err := e.reportID(showFlags.reportID)
		if err != nil {
			return err
		}
		detail, err := e.api.GetReport(e.ctx, id)
		if err != nil {
			return err
		}
		if err := e.remember(detail.PreReport); err != nil {
			return err
		}
		return e.render(detail, func(w io.Writer) {
			r := detail.PreReport
			fmt.Fprintf(w, "Report:   #%d (%s)\n", r.ID, r.LeadType)
			fmt.Fprintf(w, "Client:   %d\n", r.ClientID)
			fmt.Fprintf(w, "Products: %v\n", r.ProductIDs)
			fmt.Fprintf(w, "Status:   %s\n", r.ReportStatus)
			fmt.Fprintf(w, "Step:     %d\n", r.CurrentStep)
			printProgress(w, detail.Progress)
		})
	})
}

func runStep(cmd *cobra.Command, args []string) error {
	step, err := strconv.Atoi(args[0])
	if err != nil || step < 1 {
		return fmt.Errorf("invalid step %q: want a positive number", args[0])
	}

	return run(cmd, func(e *env) error {
		id, err := e.reportID(stepFlags.reportID)
		if err != nil {
			return err
		}

		if stepFlags.file != "" || len(stepFlags.sets) > 0 {
			payload, err := loadPayload(stepFlags.file, stepFlags.sets, cmd.InOrStdin())
			if err != nil {
				return err
			}
			t, err := e.api.UpdateStep(e.ctx, id, step, payload)
			if err != nil {
				return err
			}
			if err := e.rememberTransition(t); err != nil {
				return err
			}
			return e.render(t, func(w io.Writer) {
				fmt.Fprintf(w, "Saved step %d.\n", step)
				printTransition(w, t)
			})
		}

		detail, err := e.api.StepDetail(e.ctx, id, step)
		if err != nil {
			return err
		}
		return e.render(detail, func(w io.Writer) {
			state := "incomplete"
			if detail.Complete {
				state = "complete"
			}
			fmt.Fprintf(w, "Step %d of %d: %s (%s)\n", detail.StepNumber, detail.TotalSteps, detail.Title, state)
			if detail.Skippable {
				fmt.Fprintln(w, "This step may be skipped.")
			}
			for _, field := range detail.Fields {
				if v, ok := detail.Data[field]; ok {
					fmt.Fprintf(w, "  %s: %v\n", field, v)
				} else {
					fmt.Fprintf(w, "  %s: -\n", field)
				}
			}
			extra := make([]string, 0)
			for k := range detail.Data {
				if !slices.Contains(detail.Fields, k) {
					extra = append(extra, k)
				}
			}
			sort.Strings(extra)
			for _, k := range extra {
				fmt.Fprintf(w, "  %s: %v (extra)\n", k, detail.Data[k])
			}
		})
	})
}
