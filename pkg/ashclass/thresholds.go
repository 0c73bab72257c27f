package ashclass

import "fmt"

// Thresholds holds every numeric constant of the cascade. Temperatures are
// in Kelvin, deltas in Kelvin differences, angles in degrees and C04 as a
// reflectance fraction.
type Thresholds struct {
	// Stage A: texture outlier test delta1 - (mean + stdev) < TextureOutlier.
	TextureOutlier      float64 `yaml:"texture-outlier" json:"texture_outlier"`
	TextureHighDelta1   float64 `yaml:"texture-high-delta1" json:"texture_high_delta1"`
	TextureMediumDelta1 float64 `yaml:"texture-medium-delta1" json:"texture_medium_delta1"`

	// Stage B: high confidence when delta1 < HighDelta1, delta2 > HighDelta2
	// and delta3 > HighDelta3. Medium confidence likewise.
	HighDelta1   float64 `yaml:"high-delta1" json:"high_delta1"`
	HighDelta2   float64 `yaml:"high-delta2" json:"high_delta2"`
	HighDelta3   float64 `yaml:"high-delta3" json:"high_delta3"`
	MediumDelta1 float64 `yaml:"medium-delta1" json:"medium_delta1"`
	MediumDelta2 float64 `yaml:"medium-delta2" json:"medium_delta2"`
	MediumDelta3 float64 `yaml:"medium-delta3" json:"medium_delta3"`

	// Illuminated regimes additionally require C04 > ReflectanceMin. Twilight
	// also requires C13 < ColdTopMaxK.
	ReflectanceMin float64 `yaml:"reflectance-min" json:"reflectance_min"`
	ColdTopMaxK    float64 `yaml:"cold-top-max-k" json:"cold_top_max_k"`

	// Regime selection: sza > NightSZA is night, sza <= DaySZA is day,
	// anything between is twilight.
	NightSZA float64 `yaml:"night-sza" json:"night_sza"`
	DaySZA   float64 `yaml:"day-sza" json:"day_sza"`

	// Stage C ladder on delta2 for medium confidence pixels.
	RefineKeep    float64 `yaml:"refine-keep" json:"refine_keep"`
	RefineMedium  float64 `yaml:"refine-medium" json:"refine_medium"`
	RefineRefined float64 `yaml:"refine-refined" json:"refine_refined"`

	// Stage D: labels up to medium are dropped when delta3 <= FalsePosMedium,
	// refined and above when delta3 <= FalsePosRefined.
	FalsePosMedium  float64 `yaml:"false-pos-medium" json:"false_pos_medium"`
	FalsePosRefined float64 `yaml:"false-pos-refined" json:"false_pos_refined"`
}

// Default returns the operational calibration.
func Default() Thresholds {
	return Thresholds{
		TextureOutlier:      -1,
		TextureHighDelta1:   0,
		TextureMediumDelta1: 1,

		HighDelta1:   0,
		HighDelta2:   0,
		HighDelta3:   2,
		MediumDelta1: 1,
		MediumDelta2: -0.5,
		MediumDelta3: 2,

		ReflectanceMin: 0.002,
		ColdTopMaxK:    273,

		NightSZA: 85,
		DaySZA:   70,

		RefineKeep:    -0.6,
		RefineMedium:  -1,
		RefineRefined: -1.5,

		FalsePosMedium:  0,
		FalsePosRefined: 1.5,
	}
}

// Validate rejects tables whose regime partition or refinement ladder is not
// ordered.
func (t Thresholds) Validate() error {
	if t.DaySZA > t.NightSZA {
		return fmt.Errorf("day-sza (%g) must not exceed night-sza (%g)", t.DaySZA, t.NightSZA)
	}
	if t.DaySZA < 0 || t.NightSZA > 180 {
		return fmt.Errorf("regime bounds [%g, %g] outside [0, 180]", t.DaySZA, t.NightSZA)
	}
	if !(t.RefineKeep >= t.RefineMedium && t.RefineMedium >= t.RefineRefined) {
		return fmt.Errorf("refinement ladder must satisfy refine-keep >= refine-medium >= refine-refined, got %g, %g, %g",
			t.RefineKeep, t.RefineMedium, t.RefineRefined)
	}
	if t.ReflectanceMin < 0 {
		return fmt.Errorf("reflectance-min must not be negative, got %g", t.ReflectanceMin)
	}
	return nil
}
