package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"prereport-service/internal/models"
)

var initFlags struct {
	clientID   int64
	productIDs []int64
	leadType   string
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a pre-report and make it the active report",
	Example: "  prereport init --client 3 --product 11 --product 12 --lead-type CLIENT_LEAD\n" +
		"  prereport init --client 3 --product 11 --lead-type truebuddy",
	RunE: runInit,
}

func init() {
	f := initCmd.Flags()
	f.Int64Var(&initFlags.clientID, "client", 0, "Client ID (required)")
	f.Int64SliceVar(&initFlags.productIDs, "product", nil, "Product ID, repeatable (required)")
	f.StringVar(&initFlags.leadType, "lead-type", "", "CLIENT_LEAD or TRUEBUDDY_LEAD (required)")

	_ = initCmd.MarkFlagRequired("client")
	_ = initCmd.MarkFlagRequired("product")
	_ = initCmd.MarkFlagRequired("lead-type")
}

func runInit(cmd *cobra.Command, _ []string) error {
	leadType := parseLeadType(initFlags.leadType)
	return run(cmd, func(e *env) error {
		report, err := e.api.InitializeReport(e.ctx, models.InitRequest{
			ClientID:   initFlags.clientID,
			ProductIDs: initFlags.productIDs,
			LeadType:   leadType,
		})
		if err != nil {
			return err
		}
		if err := e.session.SetActiveReport(e.ctx, report.ID); err != nil {
			return fmt.Errorf("save active report: %w", err)
		}
		if err := e.remember(report); err != nil {
			return err
		}
		return e.render(report, func(w io.Writer) {
			fmt.Fprintf(w, "Created pre-report #%d (%s) for client %d\n", report.ID, report.LeadType, report.ClientID)
			fmt.Fprintf(w, "Active report is now #%d, at step %d.\n", report.ID, report.CurrentStep)
		})
	})
}

// parseLeadType accepts the canonical names and the short forms
// "client" and "truebuddy". Anything else is passed through for the
// server to reject.
func parseLeadType(s string) models.LeadType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CLIENT", "CLIENT_LEAD":
		return models.LeadTypeClient
	case "TRUEBUDDY", "TRUEBUDDY_LEAD":
		return models.LeadTypeTrueBuddy
	default:
		return models.LeadType(s)
	}
}
