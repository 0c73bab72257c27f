package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrissnell/ashdetect/internal/catalog"
	"github.com/chrissnell/ashdetect/pkg/ashclass"
	"github.com/chrissnell/ashdetect/pkg/config"
	"github.com/chrissnell/ashdetect/pkg/grid"
	"github.com/chrissnell/ashdetect/pkg/pipeline"
	"github.com/chrissnell/ashdetect/pkg/product"
)

type staticProvider struct {
	cfg *config.ConfigData
	err error
}

func (p staticProvider) LoadConfig() (*config.ConfigData, error) { return p.cfg, p.err }
func (p staticProvider) IsReadOnly() bool                        { return true }
func (p staticProvider) Close() error                            { return nil }

func writeNightScene(t *testing.T, path string) {
	t.Helper()
	s := grid.Shape{Rows: 5, Cols: 5}
	sc := pipeline.Scene{
		Time:  time.Date(2024, time.June, 21, 12, 0, 0, 0, time.UTC),
		C04:   grid.Filled(s, 0.01),
		C07:   grid.Filled(s, 230),
		C11:   grid.Filled(s, 220.1),
		C13:   grid.Filled(s, 220),
		C14:   grid.Filled(s, 221),
		C15:   grid.Filled(s, 225),
		Phase: grid.Filled(s, ashclass.PhaseUnknown),
		Lat:   grid.Filled(s, 0),
		Lon:   grid.Filled(s, 180),
	}
	if err := product.WriteScene(path, sc); err != nil {
		t.Fatalf("WriteScene: %v", err)
	}
}

func TestClassifyFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	scenePath := filepath.Join(dir, "scene.msgpack")
	outPath := filepath.Join(dir, "product.json")
	writeNightScene(t, scenePath)

	cfg := config.Defaults()
	cfg.Catalog.Path = filepath.Join(dir, "runs.db")
	cfg.Ephemeris.Source = config.EphemerisApproximate

	res, err := New(staticProvider{cfg: cfg}, nil).ClassifyFile(ctx, scenePath, outPath)
	if err != nil {
		t.Fatalf("ClassifyFile: %v", err)
	}
	if res.Counts[ashclass.HighConfidence] != 25 {
		t.Errorf("counts %v", res.Counts)
	}

	written, err := product.ReadResult(outPath)
	if err != nil {
		t.Fatalf("ReadResult: %v", err)
	}
	if !written.Labels.Equal(res.Labels) {
		t.Errorf("written labels differ from the result")
	}

	cat, err := catalog.Open(ctx, cfg.Catalog.Path, nil)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	defer cat.Close()
	runs, err := cat.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 || runs[0].Counts != res.Counts {
		t.Errorf("catalog runs %+v", runs)
	}
}

func TestClassifyFileErrors(t *testing.T) {
	dir := t.TempDir()
	scenePath := filepath.Join(dir, "scene.msgpack")
	writeNightScene(t, scenePath)

	badThresholds := config.Defaults()
	badThresholds.Classifier.Thresholds.DaySZA = 90

	badSource := config.Defaults()
	badSource.Ephemeris.Source = "sundial"

	loadErr := errors.New("no such file")

	tests := []struct {
		name     string
		provider staticProvider
		scene    string
	}{
		{"config load failure", staticProvider{err: loadErr}, scenePath},
		{"invalid thresholds", staticProvider{cfg: badThresholds}, scenePath},
		{"unknown ephemeris", staticProvider{cfg: badSource}, scenePath},
		{"missing scene", staticProvider{cfg: config.Defaults()}, filepath.Join(dir, "absent.msgpack")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.provider, nil).ClassifyFile(context.Background(), tt.scene, ""); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}

func TestNewPipeline(t *testing.T) {
	cfg := config.Defaults()
	workers := 0
	cfg.Neighborhood.Workers = &workers
	cfg.Classifier.Thresholds.ColdTopMaxK = 273.15

	p, err := NewPipeline(cfg, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if p.Neighborhood.Workers != 0 || p.Thresholds.ColdTopMaxK != 273.15 {
		t.Errorf("configuration not applied: %+v", p)
	}
}
