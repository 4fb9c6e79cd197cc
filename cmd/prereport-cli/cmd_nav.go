package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"prereport-service/internal/models"
)

var navFlags struct {
	reportID int64
	file     string
	sets     []string
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Save the current step and advance",
	Example: "  prereport next --file step3.yaml\n" +
		"  prereport next --set clientName='Acme Ltd'",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		payload, err := loadPayload(navFlags.file, navFlags.sets, cmd.InOrStdin())
		if err != nil {
			return err
		}
		return navigate(cmd, func(e *env, id int64) (*models.Transition, error) {
			return e.api.Next(e.ctx, id, payload)
		})
	},
}

var prevCmd = &cobra.Command{
	Use:     "prev",
	Aliases: []string{"previous", "back"},
	Short:   "Move back one step without saving",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return navigate(cmd, func(e *env, id int64) (*models.Transition, error) {
			return e.api.Previous(e.ctx, id)
		})
	},
}

var skipCmd = &cobra.Command{
	Use:   "skip",
	Short: "Skip the current step if it is skippable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return navigate(cmd, func(e *env, id int64) (*models.Transition, error) {
			return e.api.Skip(e.ctx, id)
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <step>",
	Short: "Jump to a step already reached",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		step, err := strconv.Atoi(args[0])
		if err != nil || step < 1 {
			return fmt.Errorf("invalid step %q: want a positive number", args[0])
		}
		return navigate(cmd, func(e *env, id int64) (*models.Transition, error) {
			return e.api.Resume(e.ctx, id, step)
		})
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit the report for review",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return navigate(cmd, func(e *env, id int64) (*models.Transition, error) {
			return e.api.Submit(e.ctx, id)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{nextCmd, prevCmd, skipCmd, resumeCmd, submitCmd} {
		c.Flags().Int64Var(&navFlags.reportID, "report", 0, "Report ID (defaults to the active report)")
	}
	nextCmd.Flags().StringVarP(&navFlags.file, "file", "f", "", "YAML or JSON payload file, - for stdin")
	nextCmd.Flags().StringArrayVar(&navFlags.sets, "set", nil, "Field override key=value, repeatable")
}

func navigate(cmd *cobra.Command, move func(e *env, id int64) (*models.Transition, error)) error {
	return run(cmd, func(e *env) error {
		id, err := e.reportID(navFlags.reportID)
		if err != nil {
			return err
		}
		t, err := move(e, id)
		if err != nil {
			return err
		}
		if err := e.rememberTransition(t); err != nil {
			return err
		}
		return e.render(t, func(w io.Writer) { printTransition(w, t) })
	})
}
