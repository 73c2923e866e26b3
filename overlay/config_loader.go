package overlay

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultConfig returns the campus floor plan the overlay was first built for
func DefaultConfig() *Config {
	return &Config{
		Overlay: OverlayConfig{
			Center:        &GeoPoint{Lat: 1.300364802547795, Lng: 103.78020277662293},
			ImageWidthPx:  1629,
			ImageHeightPx: 1245,
			LatPixelRatio: 0.000002,
			LngPixelRatio: 0.000002,
			Image:         "image/campus_sim.png",
		},
		Entities: []EntityRecord{
			{ID: "001", X: 406, Y: 334, Heading: 0},
			{ID: "002", X: 1101, Y: 613, Heading: 60},
			{ID: "003", X: 922, Y: 946, Heading: 240},
			{ID: "004", X: 863, Y: 324, Heading: 330},
		},
	}
}

// LoadConfig loads the configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}

	if config.EntitiesFile != "" && !filepath.IsAbs(config.EntitiesFile) {
		config.EntitiesFile = filepath.Join(filepath.Dir(path), config.EntitiesFile)
	}

	return config, nil
}

// ParseConfig parses and validates configuration YAML
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// ValidateConfig checks the struct constraints and reports the first failure
// as ErrInvalidConfiguration.
func ValidateConfig(config *Config) error {
	err := validate.Struct(config)
	if err == nil {
		if len(config.Entities) > 0 && config.EntitiesFile != "" {
			return fmt.Errorf("%w: entities and entitiesFile are mutually exclusive", ErrInvalidConfiguration)
		}
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, strings.Join(msgs, "; "))
}

// describeFieldError renders "Config.Overlay.ImageWidthPx" style namespaces
// with their failing rule.
func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s, got %v", field, fe.Param(), fe.Value())
	case "gte", "lte":
		return fmt.Sprintf("%s out of range, got %v", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// LoadEntities returns the configured entity snapshot, from entitiesFile when set
func LoadEntities(config *Config) ([]Entity, error) {
	if config.EntitiesFile != "" {
		return ParseEntitiesFile(config.EntitiesFile)
	}
	return ToEntities(config.Entities)
}

// BuildPlacer resolves the overlay bounds from config and returns a Placer
func BuildPlacer(oc OverlayConfig) (*Placer, error) {
	if oc.Center == nil {
		return nil, fmt.Errorf("%w: overlay.center is required", ErrInvalidConfiguration)
	}

	scale, err := LongitudeScaleByName(oc.LongitudeCorrection)
	if err != nil {
		return nil, err
	}

	bounds, err := Anchor{Scale: scale}.Resolve(*oc.Center, oc.ImageWidthPx, oc.ImageHeightPx, oc.LatPixelRatio, oc.LngPixelRatio)
	if err != nil {
		return nil, err
	}

	projector, err := NewProjector(bounds, oc.ImageWidthPx, oc.ImageHeightPx, oc.StrictBounds)
	if err != nil {
		return nil, err
	}

	return NewPlacer(projector), nil
}
