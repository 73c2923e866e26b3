package overlay

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseEntitiesFile reads an entity list. Files ending in .json are parsed as
// JSON, anything else as YAML.
func ParseEntitiesFile(path string) ([]Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading entities file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseEntitiesJSON(data)
	}
	return ParseEntitiesYAML(data)
}

// ParseEntitiesJSON parses a JSON array of {id, x, y, heading} records
func ParseEntitiesJSON(data []byte) ([]Entity, error) {
	var records []EntityRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing entities JSON: %w", err)
	}
	return ToEntities(records)
}

// ParseEntitiesYAML parses a YAML list of {id, x, y, heading} records
func ParseEntitiesYAML(data []byte) ([]Entity, error) {
	var records []EntityRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing entities YAML: %w", err)
	}
	return ToEntities(records)
}

// ToEntities converts feed records into a snapshot. IDs must be non-empty and
// unique; headings are normalized to [0, 360).
func ToEntities(records []EntityRecord) ([]Entity, error) {
	entities := make([]Entity, len(records))
	seen := make(map[string]int, len(records))

	for i, r := range records {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: entity[%d].id is required", ErrInvalidConfiguration, i)
		}
		if prev, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("%w: entity[%d].id %q duplicates entity[%d]", ErrInvalidConfiguration, i, r.ID, prev)
		}
		seen[r.ID] = i

		if !finite(r.X) || !finite(r.Y) || !finite(r.Heading) {
			return nil, fmt.Errorf("%w: entity %q has a non-finite coordinate or heading", ErrInvalidConfiguration, r.ID)
		}

		entities[i] = Entity{
			ID:       r.ID,
			Position: PixelCoordinate{X: r.X, Y: r.Y},
			Heading:  NormalizeAngle(r.Heading),
		}
	}

	return entities, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
