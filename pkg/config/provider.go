package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/chrissnell/ashdetect/pkg/ashclass"
	"github.com/chrissnell/ashdetect/pkg/nhood"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// Ephemeris source names.
const (
	EphemerisMeeus       = "meeus"
	EphemerisApproximate = "approximate"
	EphemerisTable       = "table"
)

// Server defaults.
const (
	DefaultListenAddr = "127.0.0.1"
	DefaultPort       = 8090
)

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Classifier   ClassifierData   `json:"classifier"`
	Neighborhood NeighborhoodData `json:"neighborhood"`
	Ephemeris    EphemerisData    `json:"ephemeris"`
	Catalog      CatalogData      `json:"catalog,omitempty"`
	Server       ServerData       `json:"server,omitempty"`
}

// ClassifierData holds the cascade calibration
type ClassifierData struct {
	Thresholds ashclass.Thresholds `json:"thresholds"`
}

// NeighborhoodData configures the texture statistics. A nil Workers selects
// the default pool size; an explicit value of zero or less runs sequentially.
type NeighborhoodData struct {
	Window            int  `json:"window"`
	MinGood           int  `json:"min_good"`
	Workers           *int `json:"workers,omitempty"`
	ParallelThreshold int  `json:"parallel_threshold"`
}

// EphemerisData selects the sun position source
type EphemerisData struct {
	Source     string    `json:"source"`
	TableFile  string    `json:"table_file,omitempty"`
	ValidFrom  time.Time `json:"valid_from,omitempty"`
	ValidUntil time.Time `json:"valid_until,omitempty"`
}

// CatalogData holds the run catalog location. An empty path disables it.
type CatalogData struct {
	Path string `json:"path,omitempty"`
}

// ServerData holds the HTTP service settings
type ServerData struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty"`
}

// Addr returns the host:port the server listens on.
func (s ServerData) Addr() string {
	return net.JoinHostPort(s.ListenAddr, strconv.Itoa(s.Port))
}

// Defaults returns the configuration used for every unset key.
func Defaults() *ConfigData {
	n := nhood.DefaultOptions()
	return &ConfigData{
		Classifier: ClassifierData{Thresholds: ashclass.Default()},
		Neighborhood: NeighborhoodData{
			Window:            n.Window,
			MinGood:           n.MinGood,
			ParallelThreshold: n.ParallelThreshold,
		},
		Ephemeris: EphemerisData{Source: EphemerisMeeus},
		Server:    ServerData{ListenAddr: DefaultListenAddr, Port: DefaultPort},
	}
}

// Options converts the section to filter options.
func (n NeighborhoodData) Options() nhood.Options {
	opts := nhood.Options{
		Window:            n.Window,
		MinGood:           n.MinGood,
		Workers:           nhood.DefaultWorkers(),
		ParallelThreshold: n.ParallelThreshold,
	}
	if n.Workers != nil {
		opts.Workers = *n.Workers
	}
	return opts
}

// Validate checks the configuration for consistency
func (c *ConfigData) Validate() error {
	if err := c.Classifier.Thresholds.Validate(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	if err := c.Neighborhood.Options().Validate(); err != nil {
		return fmt.Errorf("neighborhood: %w", err)
	}
	if c.Neighborhood.ParallelThreshold < 0 {
		return fmt.Errorf("neighborhood: parallel-threshold must not be negative, got %d", c.Neighborhood.ParallelThreshold)
	}

	switch c.Ephemeris.Source {
	case EphemerisMeeus, EphemerisApproximate:
	case EphemerisTable:
		if c.Ephemeris.TableFile == "" {
			return fmt.Errorf("ephemeris: source %q requires table-file", EphemerisTable)
		}
	default:
		return fmt.Errorf("ephemeris: unknown source %q", c.Ephemeris.Source)
	}
	if !c.Ephemeris.ValidFrom.IsZero() && !c.Ephemeris.ValidUntil.IsZero() && !c.Ephemeris.ValidFrom.Before(c.Ephemeris.ValidUntil) {
		return fmt.Errorf("ephemeris: valid-from %s is not before valid-until %s",
			c.Ephemeris.ValidFrom.Format(time.RFC3339), c.Ephemeris.ValidUntil.Format(time.RFC3339))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server: port %d out of range", c.Server.Port)
	}
	return nil
}
