package config

import (
	"fmt"
	"os"
	"time"

	"github.com/chrissnell/ashdetect/pkg/ashclass"
	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file. Keys absent
// from the file keep their defaults.
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := parseYAML(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

func parseYAML(data []byte) (*ConfigData, error) {
	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Classifier   ClassifierYAML   `yaml:"classifier,omitempty"`
		Neighborhood NeighborhoodYAML `yaml:"neighborhood,omitempty"`
		Ephemeris    EphemerisYAML    `yaml:"ephemeris,omitempty"`
		Catalog      CatalogYAML      `yaml:"catalog,omitempty"`
		Server       ServerYAML       `yaml:"server,omitempty"`
	}
	yamlConfig.Classifier.Thresholds = ashclass.Default()

	if err := yaml.UnmarshalStrict(data, &yamlConfig); err != nil {
		return nil, err
	}

	// Convert to our internal format
	config := Defaults()
	config.Classifier.Thresholds = yamlConfig.Classifier.Thresholds

	n := yamlConfig.Neighborhood
	if n.Window != nil {
		config.Neighborhood.Window = *n.Window
	}
	if n.MinGood != nil {
		config.Neighborhood.MinGood = *n.MinGood
	}
	if n.ParallelThreshold != nil {
		config.Neighborhood.ParallelThreshold = *n.ParallelThreshold
	}
	config.Neighborhood.Workers = n.Workers

	e := yamlConfig.Ephemeris
	if e.Source != "" {
		config.Ephemeris.Source = e.Source
	}
	config.Ephemeris.TableFile = e.TableFile
	var err error
	if config.Ephemeris.ValidFrom, err = parseTime("valid-from", e.ValidFrom); err != nil {
		return nil, err
	}
	if config.Ephemeris.ValidUntil, err = parseTime("valid-until", e.ValidUntil); err != nil {
		return nil, err
	}

	config.Catalog.Path = yamlConfig.Catalog.Path

	if yamlConfig.Server.ListenAddr != "" {
		config.Server.ListenAddr = yamlConfig.Server.ListenAddr
	}
	if yamlConfig.Server.Port != 0 {
		config.Server.Port = yamlConfig.Server.Port
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func parseTime(key, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("ephemeris: %s: %w", key, err)
	}
	return t.UTC(), nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with proper YAML tags
type ClassifierYAML struct {
	Thresholds ashclass.Thresholds `yaml:"thresholds,omitempty"`
}

type NeighborhoodYAML struct {
	Window            *int `yaml:"window,omitempty"`
	MinGood           *int `yaml:"min-good,omitempty"`
	Workers           *int `yaml:"workers,omitempty"`
	ParallelThreshold *int `yaml:"parallel-threshold,omitempty"`
}

type EphemerisYAML struct {
	Source     string `yaml:"source,omitempty"`
	TableFile  string `yaml:"table-file,omitempty"`
	ValidFrom  string `yaml:"valid-from,omitempty"`
	ValidUntil string `yaml:"valid-until,omitempty"`
}

type CatalogYAML struct {
	Path string `yaml:"path,omitempty"`
}

type ServerYAML struct {
	ListenAddr string `yaml:"listen-addr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
}
