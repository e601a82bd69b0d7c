// Package config provides configuration loading and management for petscatter.
// It handles loading scanner constants from YAML files and provides defaults
// matching a 64-ring clinical PET scanner.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config holds the scanner constants and processing parameters. A Config is
// immutable for a given scanner model; every component of the scatter
// pipeline reads from it.
type Config struct {
	// Scanner geometry
	Scanner struct {
		// NRings is the number of axial detector rings
		NRings int `yaml:"nRings"`

		// NCrystals is the number of transaxial crystals per ring,
		// including the block-gap crystals
		NCrystals int `yaml:"nCrystals"`

		// NAngles and NBins are the sinogram dimensions (angular and
		// radial bin counts)
		NAngles int `yaml:"nAngles"`
		NBins   int `yaml:"nBins"`

		// RingRadius is the detector ring radius in cm, used when
		// synthesizing the transaxial crystal table
		RingRadius float64 `yaml:"ringRadius"`

		// VoxelXY and VoxelZ are the image voxel sizes in cm
		VoxelXY float64 `yaml:"voxelXY"`
		VoxelZ  float64 `yaml:"voxelZ"`

		// MaxRingDiff is the maximum ring difference recorded by the
		// scanner; it defines the span-11 segment structure
		MaxRingDiff int `yaml:"maxRingDiff"`
	} `yaml:"scanner"`

	// Acquisition parameters
	Acquisition struct {
		// Span is the axial compression of the output sinogram;
		// supported values are 1 and 11
		Span int `yaml:"span"`

		// NTOFBins is the number of time-of-flight bins (1 for
		// non-TOF acquisitions)
		NTOFBins int `yaml:"nTOFBins"`

		// LLD is the lower-level energy discriminator in keV
		LLD float64 `yaml:"lld"`

		// EnergyResolution is the fractional energy resolution at
		// 511 keV (0 disables the energy acceptance term)
		EnergyResolution float64 `yaml:"energyResolution"`
	} `yaml:"acquisition"`

	// Scatter modelling parameters
	Scatter struct {
		// NCosBins is the number of quantized cosine bins of the
		// Klein-Nishina lookup table
		NCosBins int `yaml:"nCosBins"`

		// CosUpsMax is the cosine of the maximum modelled scattering
		// angle; the cosine axis spans [CosUpsMax, 1]
		CosUpsMax float64 `yaml:"cosUpsMax"`

		// MuScale and EmScale are the per-axis zoom factors taking the
		// mu-map and emission image to the coarse scatter grid
		MuScale [3]float64 `yaml:"muScale"`
		EmScale [3]float64 `yaml:"emScale"`

		// RingStart and RingEnd bound the active axial ring range used
		// for the scatter LUTs
		RingStart int `yaml:"ringStart"`
		RingEnd   int `yaml:"ringEnd"`
	} `yaml:"scatter"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for the
		// per-plane sinogram interpolation
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`
}

// DefaultConfig returns a configuration with default values for a 64-ring
// whole-body scanner (504 crystals per ring, 252x344 sinograms).
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Scanner.NRings = 64
	cfg.Scanner.NCrystals = 504
	cfg.Scanner.NAngles = 252
	cfg.Scanner.NBins = 344
	cfg.Scanner.RingRadius = 32.8
	cfg.Scanner.VoxelXY = 0.208626
	cfg.Scanner.VoxelZ = 0.203125
	cfg.Scanner.MaxRingDiff = 60

	cfg.Acquisition.Span = 11
	cfg.Acquisition.NTOFBins = 1
	cfg.Acquisition.LLD = 430.0
	cfg.Acquisition.EnergyResolution = 0.145

	cfg.Scatter.NCosBins = 256
	cfg.Scatter.CosUpsMax = 0.725
	cfg.Scatter.MuScale = [3]float64{0.499, 0.5, 0.5}
	cfg.Scatter.EmScale = [3]float64{0.34, 0.33, 0.33}
	cfg.Scatter.RingStart = 0
	cfg.Scatter.RingEnd = 64

	cfg.Processing.NumCores = runtime.NumCPU()

	return cfg
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for inconsistencies. Configuration
// errors are fatal and are raised before any LUT construction starts.
func (c *Config) Validate() error {
	if c.Scanner.NRings <= 0 {
		return fmt.Errorf("config: ring count must be positive, got %d", c.Scanner.NRings)
	}
	if c.Scanner.NCrystals <= 0 {
		return fmt.Errorf("config: crystal count must be positive, got %d", c.Scanner.NCrystals)
	}
	if c.Scanner.NAngles <= 0 || c.Scanner.NBins <= 0 {
		return fmt.Errorf("config: sinogram dimensions must be positive, got %dx%d",
			c.Scanner.NAngles, c.Scanner.NBins)
	}
	if c.Acquisition.Span != 1 && c.Acquisition.Span != 11 {
		return fmt.Errorf("config: unsupported span %d (supported: 1, 11)", c.Acquisition.Span)
	}
	if c.Acquisition.NTOFBins < 1 {
		return fmt.Errorf("config: TOF bin count must be at least 1, got %d", c.Acquisition.NTOFBins)
	}
	if c.Scatter.NCosBins < 2 {
		return fmt.Errorf("config: cosine bin count must be at least 2, got %d", c.Scatter.NCosBins)
	}
	if c.Scatter.CosUpsMax <= -1 || c.Scatter.CosUpsMax >= 1 {
		return fmt.Errorf("config: cosine of maximum scattering angle must be in (-1,1), got %g",
			c.Scatter.CosUpsMax)
	}
	if c.Scatter.RingStart < 0 || c.Scatter.RingEnd > c.Scanner.NRings ||
		c.Scatter.RingStart >= c.Scatter.RingEnd {
		return fmt.Errorf("config: invalid active ring range [%d,%d) for %d rings",
			c.Scatter.RingStart, c.Scatter.RingEnd, c.Scanner.NRings)
	}
	if c.Scanner.MaxRingDiff < 0 || c.Scanner.MaxRingDiff >= c.Scanner.NRings {
		return fmt.Errorf("config: maximum ring difference %d out of range for %d rings",
			c.Scanner.MaxRingDiff, c.Scanner.NRings)
	}
	return nil
}

// NSpan1Planes returns the total number of span-1 sinogram planes, one per
// ordered ring pair.
func (c *Config) NSpan1Planes() int {
	return c.Scanner.NRings * c.Scanner.NRings
}

// NSegments0 returns the number of single-slice-rebinned (SSR) segments,
// one per michelogram anti-diagonal.
func (c *Config) NSegments0() int {
	return 2*c.Scanner.NRings - 1
}

// CosStep returns the width of one quantized cosine bin.
func (c *Config) CosStep() float64 {
	return (1 - c.Scatter.CosUpsMax) / float64(c.Scatter.NCosBins-1)
}
