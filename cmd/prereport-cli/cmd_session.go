package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"prereport-service/internal/models"
	"prereport-service/internal/session"
)

var whoamiFlags struct {
	set string
}

var useCmd = &cobra.Command{
	Use:   "use <report-id>",
	Short: "Make an existing report the active report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id < 1 {
			return fmt.Errorf("invalid report id %q", args[0])
		}
		return run(cmd, func(e *env) error {
			detail, err := e.api.GetReport(e.ctx, id)
			if err != nil {
				return err
			}
			if err := e.session.SetActiveReport(e.ctx, id); err != nil {
				return fmt.Errorf("save active report: %w", err)
			}
			if err := e.remember(detail.PreReport); err != nil {
				return err
			}
			return e.render(detail.PreReport, func(w io.Writer) {
				r := detail.PreReport
				fmt.Fprintf(w, "Active report is now #%d (%s), step %d, %s\n", r.ID, r.LeadType, r.CurrentStep, r.ReportStatus)
			})
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show or set the operator identity and the active report",
	Example: "  prereport whoami\n" +
		"  prereport whoami --set asha@truebuddy.example",
	Args: cobra.NoArgs,
	RunE: runWhoami,
}

func init() {
	whoamiCmd.Flags().StringVar(&whoamiFlags.set, "set", "", "Set the operator identity sent with every request")
}

type whoami struct {
	Operator     string        `json:"operator"`
	ActiveReport int64         `json:"activeReport,omitempty"`
	Recent       []recentEntry `json:"recent"`
}

type recentEntry struct {
	ID           int64               `json:"id"`
	LeadType     models.LeadType     `json:"leadType"`
	CurrentStep  int                 `json:"currentStep"`
	ReportStatus models.ReportStatus `json:"reportStatus"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	return run(cmd, func(e *env) error {
		if name := strings.TrimSpace(whoamiFlags.set); name != "" {
			if err := e.session.SetOperator(e.ctx, name); err != nil {
				return fmt.Errorf("save operator: %w", err)
			}
		}

		var out whoami
		var err error
		if out.Operator, err = e.session.Operator(e.ctx); err != nil {
			return err
		}
		active, err := e.session.ActiveReport(e.ctx)
		switch {
		case err == nil:
			out.ActiveReport = active
		case !errors.Is(err, session.ErrNoActiveReport):
			return err
		}
		recent, err := e.session.Recent(e.ctx)
		if err != nil {
			return err
		}
		out.Recent = make([]recentEntry, 0, len(recent))
		for _, r := range recent {
			out.Recent = append(out.Recent, recentEntry{
				ID: r.ID, LeadType: r.LeadType, CurrentStep: r.CurrentStep, ReportStatus: r.Status,
			})
		}

		return e.render(out, func(w io.Writer) {
			operator := out.Operator
			if operator == "" {
				operator = "(not set)"
			}
			fmt.Fprintf(w, "Operator: %s\n", operator)
			if out.ActiveReport > 0 {
				fmt.Fprintf(w, "Active:   #%d\n", out.ActiveReport)
			} else {
				fmt.Fprintln(w, "Active:   (none)")
			}
			if len(out.Recent) > 0 {
				fmt.Fprintln(w, "Recent:")
				for _, r := range out.Recent {
					fmt.Fprintf(w, "  #%d %s step %d %s\n", r.ID, r.LeadType, r.CurrentStep, r.ReportStatus)
				}
			}
		})
	})
}
