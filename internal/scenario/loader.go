package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yourusername/scenario-risk/internal/models"
)

// Format is a scenario document encoding
type Format string

// Supported formats
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format by file extension; anything that is not
// .json is read as YAML
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// LoadFile reads and converts a scenario file
func LoadFile(path string) (*models.ScenarioConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data, FormatFromPath(path))
}

// Parse decodes a scenario document. Unknown fields are rejected.
func Parse(data []byte, format Format) (*models.ScenarioConfig, error) {
	var spec Spec
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("failed to decode scenario json: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("failed to decode scenario yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported scenario format %q", format)
	}
	return spec.ToConfig()
}

// Marshal encodes a scenario in the given format
func Marshal(cfg *models.ScenarioConfig, format Format) ([]byte, error) {
	spec := FromConfig(cfg)
	switch format {
	case FormatJSON:
		return json.MarshalIndent(spec, "", "  ")
	case FormatYAML:
		return yaml.Marshal(spec)
	default:
		return nil, fmt.Errorf("unsupported scenario format %q", format)
	}
}
