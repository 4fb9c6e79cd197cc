package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prereport-service/internal/prereport/steps"
	"prereport-service/pkg/registry"
)

func TestExportThenCheck(t *testing.T) {
	for _, name := range []string{"catalog.yaml", "catalog.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, exportCatalog(path, ""))

			var out bytes.Buffer
			require.NoError(t, checkCatalog(path, &out))
			assert.Contains(t, out.String(), "Checked 2 lead types, 21 steps.")
		})
	}
}

func TestExport_SingleLeadType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truebuddy.yaml")
	require.NoError(t, exportCatalog(path, "TRUEBUDDY_LEAD"))

	cat, err := registry.LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, cat.LeadTypes, 1)
	assert.Equal(t, 11, cat.LeadTypes[0].TotalSteps)

	var out bytes.Buffer
	require.NoError(t, checkCatalog(path, &out))
	assert.Contains(t, out.String(), "Checked 1 lead types, 11 steps.")
}

func TestExport_UnknownLeadType(t *testing.T) {
	err := exportCatalog(filepath.Join(t.TempDir(), "x.yaml"), "PARTNER_LEAD")
	assert.ErrorContains(t, err, "unknown lead type")
}

func TestCheck_ReportsDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	cat := steps.Catalog()
	cat.LeadTypes[0].Steps[1].Title = "Renamed Step"
	require.NoError(t, registry.SaveCatalog(cat, path))

	var out bytes.Buffer
	err := checkCatalog(path, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of date")
	assert.Contains(t, out.String(), "Renamed Step")
}

func TestCheck_RejectsBrokenSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	cat := steps.Catalog()
	cat.LeadTypes[0].Steps[0].Schema = map[string]interface{}{"type": 42}
	require.NoError(t, registry.SaveCatalog(cat, path))

	err := checkCatalog(path, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1")
}

func TestCheck_RejectsVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	cat := steps.Catalog()
	cat.Version = "0.0.1"
	require.NoError(t, registry.SaveCatalog(cat, path))

	err := checkCatalog(path, &bytes.Buffer{})
	assert.ErrorContains(t, err, "does not match compiled version")
}

func TestCheck_StepCountMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	cat := steps.Catalog()
	cat.LeadTypes[0].Steps = cat.LeadTypes[0].Steps[:3]
	require.NoError(t, registry.SaveCatalog(cat, path))

	err := checkCatalog(path, &bytes.Buffer{})
	assert.ErrorContains(t, err, "declares 10 steps but lists 3")
}

func TestHelp_ListsCommands(t *testing.T) {
	var out bytes.Buffer
	help(&out)

	usage := out.String()
	assert.Contains(t, usage, "Usage: step-catalog <command> [flags]")
	for _, cmd := range []string{"export", "check", "help"} {
		assert.Contains(t, usage, "  "+cmd+" ")
	}
	assert.True(t, strings.HasSuffix(usage, "a command.\n"), "usage should end with a single newline")
}
