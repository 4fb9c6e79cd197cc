package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"prereport-service/internal/common/validation"
	"prereport-service/internal/models"
	"prereport-service/internal/prereport/steps"
	"prereport-service/pkg/registry"
)

const defaultCatalogPath = "configs/step-catalog.yaml"

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)

	exportPath := exportCmd.String("path", defaultCatalogPath, "Output file (.json, .yaml or .yml)")
	exportLead := exportCmd.String("leadType", "", "Export a single lead type (CLIENT_LEAD or TRUEBUDDY_LEAD)")

	checkPath := checkCmd.String("path", defaultCatalogPath, "Stored catalog to compare")

	if len(os.Args) < 2 {
		help(os.Stdout)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		if err := exportCatalog(*exportPath, *exportLead); err != nil {
			fmt.Printf("Error exporting catalog: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote step catalog to %s\n", *exportPath)

	case "check":
		checkCmd.Parse(os.Args[2:])
		if err := checkCatalog(*checkPath, os.Stdout); err != nil {
			fmt.Printf("Step catalog check failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Step catalog check passed.")

	case "help":
		fallthrough
	default:
		help(os.Stdout)
	}
}

func exportCatalog(path, leadType string) error {
	cat := steps.Catalog()
	if leadType != "" {
		lt := models.LeadType(leadType)
		if !lt.Valid() {
			return fmt.Errorf("unknown lead type: %s", leadType)
		}
		cat.LeadTypes = []registry.LeadTypeCatalog{steps.LeadTypeCatalog(lt)}
	}
	if err := compileSchemas(cat); err != nil {
		return err
	}
	return registry.SaveCatalog(cat, path)
}

// checkCatalog fails when the stored catalog has drifted from the compiled
// step definitions or when any stored step schema does not compile.
func checkCatalog(path string, w io.Writer) error {
	stored, err := registry.LoadCatalog(path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	if len(stored.LeadTypes) == 0 {
		return fmt.Errorf("catalog contains no lead types")
	}

	if err := compileSchemas(stored); err != nil {
		return err
	}

	current := steps.Catalog()
	if stored.Version != current.Version {
		return fmt.Errorf("catalog version %s does not match compiled version %s", stored.Version, current.Version)
	}

	// a single-lead-type export is checked against that lead type only
	if len(stored.LeadTypes) < len(current.LeadTypes) {
		filtered := current.LeadTypes[:0]
		for _, lt := range current.LeadTypes {
			if _, ok := stored.Find(lt.LeadType); ok {
				filtered = append(filtered, lt)
			}
		}
		current.LeadTypes = filtered
	}

	diff, err := registry.Diff(stored, current)
	if err != nil {
		return err
	}
	if diff != "" {
		fmt.Fprintf(w, "Catalog drift (-stored +compiled):\n%s", diff)
		return fmt.Errorf("catalog %s is out of date, re-run export", path)
	}

	total := 0
	for _, lt := range stored.LeadTypes {
		total += len(lt.Steps)
	}
	fmt.Fprintf(w, "Checked %d lead types, %d steps.\n", len(stored.LeadTypes), total)
	return nil
}

func compileSchemas(cat *registry.StepCatalog) error {
	for _, lt := range cat.LeadTypes {
		if lt.TotalSteps != len(lt.Steps) {
			return fmt.Errorf("%s declares %d steps but lists %d", lt.LeadType, lt.TotalSteps, len(lt.Steps))
		}
		for i, step := range lt.Steps {
			if step.Number != i+1 {
				return fmt.Errorf("%s step %d is out of order (position %d)", lt.LeadType, step.Number, i+1)
			}
			if step.Title == "" {
				return fmt.Errorf("%s step %d missing required field: title", lt.LeadType, step.Number)
			}
			if _, err := validation.CompileSchema(step.Schema); err != nil {
				return fmt.Errorf("%s step %d: %w", lt.LeadType, step.Number, err)
			}
		}
	}
	return nil
}

func help(w io.Writer) {
	fmt.Fprint(w, `
Usage: step-catalog <command> [flags]

Commands:
  export  Write the compiled step catalog to a JSON or YAML file
  check   Compare a stored catalog with the compiled steps and compile every step schema
  help    Show this help message

Examples:
  step-catalog export -path configs/step-catalog.yaml
  step-catalog export -path docs/client-steps.json -leadType CLIENT_LEAD
  step-catalog check -path configs/step-catalog.yaml

Use 'step-catalog <command> -h' for more information about a command.
`)
}
