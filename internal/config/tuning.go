package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical simulation defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/sim.defaults.json"

// TuningConfig represents the root configuration for simulation tuning
// parameters. The schema matches the /api/params endpoint so the same JSON
// can be used for both startup configuration and runtime updates.
type TuningConfig struct {
	// Arena params
	ArenaWidth  *float64 `json:"arena_width,omitempty"`
	ArenaHeight *float64 `json:"arena_height,omitempty"`

	// Car kinematics params
	BaseSpeed   *float64 `json:"base_speed,omitempty"`    // units per tick at full acceleration
	TurnRateDeg *float64 `json:"turn_rate_deg,omitempty"` // degrees per tick at full turn

	// Ray params
	RaySpreadDeg *float64 `json:"ray_spread_deg,omitempty"`
	RayMaxRange  *float64 `json:"ray_max_range,omitempty"`

	// Engine params
	TickRateHz      *float64 `json:"tick_rate_hz,omitempty"`
	SampleFlushSize *int     `json:"sample_flush_size,omitempty"`

	// Fuzzy membership breakpoints for the distance variable
	NearLow    *float64 `json:"near_low,omitempty"`
	NearHigh   *float64 `json:"near_high,omitempty"`
	MediumLow  *float64 `json:"medium_low,omitempty"`
	MediumHigh *float64 `json:"medium_high,omitempty"`
	FarLow     *float64 `json:"far_low,omitempty"`
	FarHigh    *float64 `json:"far_high,omitempty"`

	// Steering rule weights
	WeightRightNear    *float64 `json:"weight_right_near,omitempty"`
	WeightRightMedium  *float64 `json:"weight_right_medium,omitempty"`
	WeightCenterNotFar *float64 `json:"weight_center_not_far,omitempty"`
	WeightLeftNear     *float64 `json:"weight_left_near,omitempty"`
	WeightLeftMedium   *float64 `json:"weight_left_medium,omitempty"`
	WeightLeftNotFar   *float64 `json:"weight_left_not_far,omitempty"`

	// Acceleration rule weights
	WeightAccelNear   *float64 `json:"weight_accel_near,omitempty"`
	WeightAccelMedium *float64 `json:"weight_accel_medium,omitempty"`
	WeightAccelFar    *float64 `json:"weight_accel_far,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical simulation defaults from
// DefaultConfigPath. It searches for the file in the current directory and
// common parent directories. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Merge copies every non-nil field of other into c. Used by the params API
// to apply partial runtime updates.
func (c *TuningConfig) Merge(other *TuningConfig) {
	if other == nil {
		return
	}
	if other.ArenaWidth != nil {
		c.ArenaWidth = other.ArenaWidth
	}
	if other.ArenaHeight != nil {
		c.ArenaHeight = other.ArenaHeight
	}
	if other.BaseSpeed != nil {
		c.BaseSpeed = other.BaseSpeed
	}
	if other.TurnRateDeg != nil {
		c.TurnRateDeg = other.TurnRateDeg
	}
	if other.RaySpreadDeg != nil {
		c.RaySpreadDeg = other.RaySpreadDeg
	}
	if other.RayMaxRange != nil {
		c.RayMaxRange = other.RayMaxRange
	}
	if other.TickRateHz != nil {
		c.TickRateHz = other.TickRateHz
	}
	if other.SampleFlushSize != nil {
		c.SampleFlushSize = other.SampleFlushSize
	}
	if other.NearLow != nil {
		c.NearLow = other.NearLow
	}
	if other.NearHigh != nil {
		c.NearHigh = other.NearHigh
	}
	if other.MediumLow != nil {
		c.MediumLow = other.MediumLow
	}
	if other.MediumHigh != nil {
		c.MediumHigh = other.MediumHigh
	}
	if other.FarLow != nil {
		c.FarLow = other.FarLow
	}
	if other.FarHigh != nil {
		c.FarHigh = other.FarHigh
	}
	if other.WeightRightNear != nil {
		c.WeightRightNear = other.WeightRightNear
	}
	if other.WeightRightMedium != nil {
		c.WeightRightMedium = other.WeightRightMedium
	}
	if other.WeightCenterNotFar != nil {
		c.WeightCenterNotFar = other.WeightCenterNotFar
	}
	if other.WeightLeftNear != nil {
		c.WeightLeftNear = other.WeightLeftNear
	}
	if other.WeightLeftMedium != nil {
		c.WeightLeftMedium = other.WeightLeftMedium
	}
	if other.WeightLeftNotFar != nil {
		c.WeightLeftNotFar = other.WeightLeftNotFar
	}
	if other.WeightAccelNear != nil {
		c.WeightAccelNear = other.WeightAccelNear
	}
	if other.WeightAccelMedium != nil {
		c.WeightAccelMedium = other.WeightAccelMedium
	}
	if other.WeightAccelFar != nil {
		c.WeightAccelFar = other.WeightAccelFar
	}
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.ArenaWidth != nil && *c.ArenaWidth <= 0 {
		return fmt.Errorf("arena_width must be positive, got %f", *c.ArenaWidth)
	}
	if c.ArenaHeight != nil && *c.ArenaHeight <= 0 {
		return fmt.Errorf("arena_height must be positive, got %f", *c.ArenaHeight)
	}
	if c.BaseSpeed != nil && *c.BaseSpeed <= 0 {
		return fmt.Errorf("base_speed must be positive, got %f", *c.BaseSpeed)
	}
	if c.RaySpreadDeg != nil && (*c.RaySpreadDeg <= 0 || *c.RaySpreadDeg >= 180) {
		return fmt.Errorf("ray_spread_deg must be in (0, 180), got %f", *c.RaySpreadDeg)
	}
	if c.RayMaxRange != nil && *c.RayMaxRange <= 0 {
		return fmt.Errorf("ray_max_range must be positive, got %f", *c.RayMaxRange)
	}
	if c.TickRateHz != nil && *c.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be positive, got %f", *c.TickRateHz)
	}
	if c.SampleFlushSize != nil && *c.SampleFlushSize < 1 {
		return fmt.Errorf("sample_flush_size must be at least 1, got %d", *c.SampleFlushSize)
	}

	// Breakpoint pairs must be ordered low < high.
	pairs := []struct {
		name      string
		low, high *float64
	}{
		{"near", c.NearLow, c.NearHigh},
		{"medium", c.MediumLow, c.MediumHigh},
		{"far", c.FarLow, c.FarHigh},
	}
	for _, p := range pairs {
		if p.low != nil && p.high != nil && *p.low >= *p.high {
			return fmt.Errorf("%s_low %f must be below %s_high %f", p.name, *p.low, p.name, *p.high)
		}
	}

	return nil
}

// GetArenaWidth returns the arena_width value or the default.
func (c *TuningConfig) GetArenaWidth() float64 {
	if c.ArenaWidth == nil {
		return 800
	}
	return *c.ArenaWidth
}

// GetArenaHeight returns the arena_height value or the default.
func (c *TuningConfig) GetArenaHeight() float64 {
	if c.ArenaHeight == nil {
		return 600
	}
	return *c.ArenaHeight
}

// GetBaseSpeed returns the base_speed value or the default.
func (c *TuningConfig) GetBaseSpeed() float64 {
	if c.BaseSpeed == nil {
		return 2.0
	}
	return *c.BaseSpeed
}

// GetTurnRateDeg returns the turn_rate_deg value or the default.
func (c *TuningConfig) GetTurnRateDeg() float64 {
	if c.TurnRateDeg == nil {
		return 2.0
	}
	return *c.TurnRateDeg
}

// GetRaySpreadDeg returns the ray_spread_deg value or the default.
func (c *TuningConfig) GetRaySpreadDeg() float64 {
	if c.RaySpreadDeg == nil {
		return 45.0
	}
	return *c.RaySpreadDeg
}

// GetRayMaxRange returns the ray_max_range value or the default.
func (c *TuningConfig) GetRayMaxRange() float64 {
	if c.RayMaxRange == nil {
		return 200.0
	}
	return *c.RayMaxRange
}

// GetTickRateHz returns the tick_rate_hz value or the default.
func (c *TuningConfig) GetTickRateHz() float64 {
	if c.TickRateHz == nil {
		return 144.0
	}
	return *c.TickRateHz
}

// GetTickInterval derives the engine tick interval from the tick rate.
func (c *TuningConfig) GetTickInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.GetTickRateHz())
}

// GetSampleFlushSize returns the sample_flush_size value or the default.
func (c *TuningConfig) GetSampleFlushSize() int {
	if c.SampleFlushSize == nil {
		return 128
	}
	return *c.SampleFlushSize
}

// GetNearLow returns the near_low value or the default.
func (c *TuningConfig) GetNearLow() float64 {
	if c.NearLow == nil {
		return 0
	}
	return *c.NearLow
}

// GetNearHigh returns the near_high value or the default.
func (c *TuningConfig) GetNearHigh() float64 {
	if c.NearHigh == nil {
		return 50
	}
	return *c.NearHigh
}

// GetMediumLow returns the medium_low value or the default.
func (c *TuningConfig) GetMediumLow() float64 {
	if c.MediumLow == nil {
		return 40
	}
	return *c.MediumLow
}

// GetMediumHigh returns the medium_high value or the default.
func (c *TuningConfig) GetMediumHigh() float64 {
	if c.MediumHigh == nil {
		return 180
	}
	return *c.MediumHigh
}

// GetFarLow returns the far_low value or the default.
func (c *TuningConfig) GetFarLow() float64 {
	if c.FarLow == nil {
		return 100
	}
	return *c.FarLow
}

// GetFarHigh returns the far_high value or the default.
func (c *TuningConfig) GetFarHigh() float64 {
	if c.FarHigh == nil {
		return 200
	}
	return *c.FarHigh
}

// GetWeightRightNear returns the weight_right_near value or the default.
func (c *TuningConfig) GetWeightRightNear() float64 {
	if c.WeightRightNear == nil {
		return -1.0
	}
	return *c.WeightRightNear
}

// GetWeightRightMedium returns the weight_right_medium value or the default.
func (c *TuningConfig) GetWeightRightMedium() float64 {
	if c.WeightRightMedium == nil {
		return 0.5
	}
	return *c.WeightRightMedium
}

// GetWeightCenterNotFar returns the weight_center_not_far value or the default.
func (c *TuningConfig) GetWeightCenterNotFar() float64 {
	if c.WeightCenterNotFar == nil {
		return 0.8
	}
	return *c.WeightCenterNotFar
}

// GetWeightLeftNear returns the weight_left_near value or the default.
func (c *TuningConfig) GetWeightLeftNear() float64 {
	if c.WeightLeftNear == nil {
		return 1.0
	}
	return *c.WeightLeftNear
}

// GetWeightLeftMedium returns the weight_left_medium value or the default.
func (c *TuningConfig) GetWeightLeftMedium() float64 {
	if c.WeightLeftMedium == nil {
		return 0.5
	}
	return *c.WeightLeftMedium
}

// GetWeightLeftNotFar returns the weight_left_not_far value or the default.
func (c *TuningConfig) GetWeightLeftNotFar() float64 {
	if c.WeightLeftNotFar == nil {
		return -0.6
	}
	return *c.WeightLeftNotFar
}

// GetWeightAccelNear returns the weight_accel_near value or the default.
func (c *TuningConfig) GetWeightAccelNear() float64 {
	if c.WeightAccelNear == nil {
		return -1.0
	}
	return *c.WeightAccelNear
}

// GetWeightAccelMedium returns the weight_accel_medium value or the default.
func (c *TuningConfig) GetWeightAccelMedium() float64 {
	if c.WeightAccelMedium == nil {
		return 0.8
	}
	return *c.WeightAccelMedium
}

// GetWeightAccelFar returns the weight_accel_far value or the default.
func (c *TuningConfig) GetWeightAccelFar() float64 {
	if c.WeightAccelFar == nil {
		return 1.0
	}
	return *c.WeightAccelFar
}
