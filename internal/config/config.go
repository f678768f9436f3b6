package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"thumblocate/pkg/features"
	"thumblocate/pkg/homography"
	"thumblocate/pkg/match"
	"thumblocate/pkg/reconstruct"
)

// Config holds the application configuration.
type Config struct {
	Detector    DetectorConfig    `json:"detector"`
	Matcher     MatcherConfig     `json:"matcher"`
	Homography  HomographyConfig  `json:"homography"`
	Reconstruct ReconstructConfig `json:"reconstruct"`
	Output      OutputConfig      `json:"output"`
}

// DetectorConfig holds configuration for feature detection.
type DetectorConfig struct {
	MaxFeatures       int     `json:"max_features"`
	PyramidLevels     int     `json:"pyramid_levels"`
	HarrisK           float64 `json:"harris_k"`
	ResponseThreshold float64 `json:"response_threshold"`
	PatchRadius       int     `json:"patch_radius"`
}

// MatcherConfig holds configuration for correspondence filtering.
type MatcherConfig struct {
	RatioThreshold float64 `json:"ratio_threshold"`
}

// HomographyConfig holds configuration for robust estimation.
type HomographyConfig struct {
	Iterations      int     `json:"iterations"`
	InlierThreshold float64 `json:"inlier_threshold"`
	Seed            int64   `json:"seed"`
}

// ReconstructConfig holds configuration for region reconstruction.
type ReconstructConfig struct {
	FitWithinThumbnail bool `json:"fit_within_thumbnail"`
}

// OutputConfig holds configuration for saved reconstructions and
// visualizations.
type OutputConfig struct {
	Format   string `json:"format"`
	Dir      string `json:"dir"`
	Quality  int    `json:"quality"`
	Lossless bool   `json:"lossless"`
}

// Default returns a configuration with default values.
func Default() *Config {
	detector := features.DefaultDetectionConfig()
	matcher := match.DefaultConfig()
	hom := homography.DefaultConfig()
	rec := reconstruct.DefaultConfig()

	return &Config{
		Detector: DetectorConfig{
			MaxFeatures:       detector.MaxFeatures,
			PyramidLevels:     detector.PyramidLevels,
			HarrisK:           detector.HarrisK,
			ResponseThreshold: detector.ResponseThreshold,
			PatchRadius:       detector.PatchRadius,
		},
		Matcher: MatcherConfig{
			RatioThreshold: matcher.RatioThreshold,
		},
		Homography: HomographyConfig{
			Iterations:      hom.Iterations,
			InlierThreshold: hom.InlierThreshold,
			Seed:            hom.Seed,
		},
		Reconstruct: ReconstructConfig{
			FitWithinThumbnail: rec.FitWithinTemplate,
		},
		Output: OutputConfig{
			Format:   "jpg",
			Dir:      "",
			Quality:  90,
			Lossless: false,
		},
	}
}

// LoadFromFile loads configuration from a JSON file.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a JSON file.
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Detector.MaxFeatures < 1 {
		return fmt.Errorf("detector.max_features must be positive")
	}

	if c.Detector.PyramidLevels < 1 {
		return fmt.Errorf("detector.pyramid_levels must be positive")
	}

	if c.Detector.PatchRadius < 1 {
		return fmt.Errorf("detector.patch_radius must be positive")
	}

	if c.Matcher.RatioThreshold <= 0 || c.Matcher.RatioThreshold > 1 {
		return fmt.Errorf("matcher.ratio_threshold must be in (0, 1]")
	}

	if c.Homography.Iterations < 1 {
		return fmt.Errorf("homography.iterations must be positive")
	}

	if c.Homography.InlierThreshold <= 0 {
		return fmt.Errorf("homography.inlier_threshold must be positive")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	switch c.Output.Format {
	case "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("output.format must be jpg, png or webp")
	}

	return nil
}

// DetectionConfig converts the detector section to the features package form.
func (c *Config) DetectionConfig() features.DetectionConfig {
	return features.DetectionConfig{
		MaxFeatures:       c.Detector.MaxFeatures,
		PyramidLevels:     c.Detector.PyramidLevels,
		HarrisK:           c.Detector.HarrisK,
		ResponseThreshold: c.Detector.ResponseThreshold,
		PatchRadius:       c.Detector.PatchRadius,
	}
}

// MatchConfig converts the matcher section to the match package form.
func (c *Config) MatchConfig() match.Config {
	return match.Config{RatioThreshold: c.Matcher.RatioThreshold}
}

// EstimatorConfig converts the homography section to the homography package
// form.
func (c *Config) EstimatorConfig() homography.Config {
	return homography.Config{
		Iterations:      c.Homography.Iterations,
		InlierThreshold: c.Homography.InlierThreshold,
		Seed:            c.Homography.Seed,
	}
}

// ReconstructorConfig converts the reconstruct section to the reconstruct
// package form.
func (c *Config) ReconstructorConfig() reconstruct.Config {
	return reconstruct.Config{FitWithinTemplate: c.Reconstruct.FitWithinThumbnail}
}

// GetConfigPath returns the default configuration file path.
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "thumblocate", "config.json")
}
