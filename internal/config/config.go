// Package config holds the tubecage CLI configuration: a JSON file with
// per-field overrides from command line flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Config holds all configurable inputs and render settings.
type Config struct {
	// Cage inputs
	Script string `json:"script"`
	Points string `json:"points"`
	Splits string `json:"splits"`
	Smooth int    `json:"smooth"`

	// Template settings
	Sides  int     `json:"sides"`
	Radius float64 `json:"radius"`

	// Outputs
	STLPath     string `json:"stl_path"`
	PreviewPath string `json:"preview_path"`

	// Preview settings
	TileSize    int `json:"tile_size"`
	Supersample int `json:"supersample"`
}

// Load reads a JSON config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Resolve fills in any empty fields with defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.Script != "" {
		c.Script = flags.Script
	}
	if flags.Points != "" {
		c.Points = flags.Points
	}
	if flags.Splits != "" {
		c.Splits = flags.Splits
	}
	if flags.Smooth > 0 {
		c.Smooth = flags.Smooth
	}
	if flags.Sides > 0 {
		c.Sides = flags.Sides
	}
	if flags.Radius > 0 {
		c.Radius = flags.Radius
	}
	if flags.STLPath != "" {
		c.STLPath = flags.STLPath
	}
	if flags.PreviewPath != "" {
		c.PreviewPath = flags.PreviewPath
	}
	if flags.TileSize > 0 {
		c.TileSize = flags.TileSize
	}
	if flags.Supersample > 0 {
		c.Supersample = flags.Supersample
	}

	// Defaults for template and preview settings
	if c.Sides < 3 {
		c.Sides = 4
	}
	if c.Radius <= 0 {
		c.Radius = 1.0
	}
	if c.TileSize <= 0 {
		c.TileSize = 256
	}
	if c.Supersample <= 0 {
		c.Supersample = 4
	}
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	Script      string
	Points      string
	Splits      string
	Smooth      int
	Sides       int
	Radius      float64
	STLPath     string
	PreviewPath string
	TileSize    int
	Supersample int
}

// ParsePoints parses a skeleton point list of the form
// "x,y,z; x,y,z; ..." into 3D vectors.
func ParsePoints(s string) ([]v3.Vec, error) {
	var pts []v3.Vec
	for i, group := range strings.Split(s, ";") {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		coords := strings.Split(group, ",")
		if len(coords) != 3 {
			return nil, fmt.Errorf("point %d: expected 3 coordinates, got %d", i, len(coords))
		}
		var p v3.Vec
		for j, c := range coords {
			f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
			if err != nil {
				return nil, fmt.Errorf("point %d coordinate %d: %w", i, j, err)
			}
			switch j {
			case 0:
				p.X = f
			case 1:
				p.Y = f
			case 2:
				p.Z = f
			}
		}
		pts = append(pts, p)
	}
	return pts, nil
}

// ParseSplits parses a comma-separated list of split indexes.
func ParseSplits(s string) ([]float64, error) {
	var out []float64
	for i, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("split %d: %w", i, err)
		}
		out = append(out, f)
	}
	return out, nil
}
