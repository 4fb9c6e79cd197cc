// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

// LoadCatalog reads a catalog from a .json, .yaml or .yml file.
func LoadCatalog(path string) (*StepCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cat StepCatalog
	if isYAML(path) {
		err = yaml.Unmarshal(data, &cat)
	} else {
		err = json.Unmarshal(data, &cat)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return normalize(&cat)
}

// SaveCatalog writes the catalog in the format implied by the file extension.
func SaveCatalog(cat *StepCatalog, path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cat)
	} else {
		data, err = json.MarshalIndent(cat, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Diff reports the differences between two catalogs, ignoring LastUpdated.
// An empty string means they describe the same steps.
func Diff(stored, current *StepCatalog) (string, error) {
	a, err := normalize(stored)
	if err != nil {
		return "", err
	}
	b, err := normalize(current)
	if err != nil {
		return "", err
	}
	a.LastUpdated, b.LastUpdated = "", ""
	return cmp.Diff(a, b), nil
}

// normalize routes the catalog through JSON so YAML-decoded schemas compare
// equal to freshly generated ones.
func normalize(cat *StepCatalog) (*StepCatalog, error) {
	raw, err := json.Marshal(cat)
	if err != nil {
		return nil, err
	}
	var out StepCatalog
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
