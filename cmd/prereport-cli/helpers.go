package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"prereport-service/internal/client"
	"prereport-service/internal/models"
	"prereport-service/internal/session"
)

// env bundles what every command needs once the session is open.
type env struct {
	ctx     context.Context
	session *session.Store
	api     *client.Client
	out     io.Writer
}

// run opens the session database, builds an API client acting as the
// stored operator and calls fn under the request timeout.
func run(cmd *cobra.Command, fn func(e *env) error) error {
	sess, err := session.Open(globalFlags.sessionPath)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer sess.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), globalFlags.timeout)
	defer cancel()

	api := client.New(globalFlags.apiURL, globalFlags.timeout)
	operator, err := sess.Operator(ctx)
	if err != nil {
		return fmt.Errorf("read operator: %w", err)
	}
	if operator != "" {
		api = api.WithActor(operator)
	}

	return fn(&env{ctx: ctx, session: sess, api: api, out: cmd.OutOrStdout()})
}

// reportID prefers an explicit --report flag over the active report.
func (e *env) reportID(flagValue int64) (int64, error) {
	if flagValue > 0 {
		return flagValue, nil
	}
	id, err := e.session.ActiveReport(e.ctx)
	if errors.Is(err, session.ErrNoActiveReport) {
		return 0, fmt.Errorf("no active report: run 'prereport init' or 'prereport use <id>', or pass --report")
	}
	return id, err
}

func (e *env) remember(r *models.PreReport) error {
	return e.session.Remember(e.ctx, session.Report{
		ID:          r.ID,
		LeadType:    r.LeadType,
		CurrentStep: r.CurrentStep,
		Status:      r.ReportStatus,
	})
}

func (e *env) rememberTransition(t *models.Transition) error {
	return e.session.Remember(e.ctx, session.Report{
		ID:          t.ReportID,
		LeadType:    t.LeadType,
		CurrentStep: t.CurrentStep,
		Status:      t.ReportStatus,
	})
}

// render writes v as JSON or YAML, or calls text for the default format.
func (e *env) render(v interface{}, text func(w io.Writer)) error {
	switch globalFlags.output {
	case "json":
		enc := json.NewEncoder(e.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		generic, err := toGeneric(v)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(e.out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(generic)
	case "", "text":
		text(e.out)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", globalFlags.output)
	}
}

// toGeneric round-trips through JSON so YAML output uses the JSON field names.
func toGeneric(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadPayload merges a YAML or JSON payload file ("-" reads stdin) with
// key=value overrides. Override values are parsed as YAML scalars, so
// "true", "12" and "[a, b]" keep their types.
func loadPayload(path string, sets []string, stdin io.Reader) (map[string]interface{}, error) {
	payload := map[string]interface{}{}

	if path != "" {
		var (
			data []byte
			err  error
		)
		if path == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		if err := yaml.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("decode payload %s: %w", path, err)
		}
		if payload == nil {
			payload = map[string]interface{}{}
		}
	}

	for _, kv := range sets {
		key, raw, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", kv)
		}
		var value interface{}
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
			value = raw
		}
		payload[key] = value
	}
	return payload, nil
}

func printTransition(w io.Writer, t *models.Transition) {
	fmt.Fprintf(w, "Report:   #%d (%s)\n", t.ReportID, t.LeadType)
	if t.FromStep != t.CurrentStep {
		fmt.Fprintf(w, "Step:     %d -> %d of %d\n", t.FromStep, t.CurrentStep, t.TotalSteps)
	} else {
		fmt.Fprintf(w, "Step:     %d of %d\n", t.CurrentStep, t.TotalSteps)
	}
	fmt.Fprintf(w, "Status:   %s\n", t.ReportStatus)
	if t.Progress != nil {
		fmt.Fprintf(w, "Complete: %d%% (%d/%d steps)\n",
			t.Progress.CompletionPercentage, t.Progress.CompletedSteps, t.Progress.TotalSteps)
	}
	if t.Submitted {
		fmt.Fprintln(w, "Submitted for review.")
	}
}

func printProgress(w io.Writer, p *models.Progress) {
	if p == nil {
		return
	}
	fmt.Fprintf(w, "Complete: %d%% (%d/%d steps)\n", p.CompletionPercentage, p.CompletedSteps, p.TotalSteps)
	for _, s := range p.Steps {
		mark := " "
		if s.Complete {
			mark = "x"
		}
		cursor := "  "
		if s.Number == p.CurrentStep {
			cursor = "> "
		}
		fmt.Fprintf(w, "%s[%s] %2d. %s\n", cursor, mark, s.Number, s.Title)
	}
}
