package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/quellen/tubecage/internal/config"
	"github.com/quellen/tubecage/pkg/cage"
	"github.com/quellen/tubecage/pkg/engine"
	"github.com/quellen/tubecage/pkg/preview"
	"github.com/quellen/tubecage/pkg/tessellate"
)

func main() {
	// CLI flags
	configFile := flag.String("config", "", "Path to config.json file")
	script := flag.String("script", "", "Cage script to evaluate")
	points := flag.String("points", "", "Skeleton points, e.g. \"0,0,0; 0,0,1; 0,0,2\"")
	splits := flag.String("splits", "", "Comma-separated skeleton indexes to split at")
	smooth := flag.Int("smooth", 0, "Skeleton smoothing iterations")
	sides := flag.Int("sides", 0, "Cross-section polygon sides (default: 4)")
	radius := flag.Float64("radius", 0, "Cross-section polygon radius (default: 1)")
	stlPath := flag.String("stl", "", "Write the cage surface to this STL file")
	previewPath := flag.String("preview", "", "Write a cross-section preview to this WebP file")
	tileSize := flag.Int("tile", 0, "Preview tile size in pixels (default: 256)")
	supersample := flag.Int("supersample", 0, "Preview supersampling factor (default: 4)")
	verbose := flag.Bool("v", false, "Log cage structure changes to stderr")

	flag.Parse()

	// Load config
	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI flags override config file
	cfg.Resolve(config.Flags{
		Script:      *script,
		Points:      *points,
		Splits:      *splits,
		Smooth:      *smooth,
		Sides:       *sides,
		Radius:      *radius,
		STLPath:     *stlPath,
		PreviewPath: *previewPath,
		TileSize:    *tileSize,
		Supersample: *supersample,
	})

	if cfg.Script == "" && cfg.Points == "" {
		fmt.Fprintln(os.Stderr, "Error: nothing to build. Use -script or -points.")
		flag.Usage()
		os.Exit(1)
	}

	if *verbose {
		cage.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	var c *cage.BoundingCage
	var err error
	if cfg.Script != "" {
		c, err = buildFromScript(cfg)
	} else {
		c, err = buildFromPoints(cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Cage: %d keyframes, %d cells, %d vertices, %d faces, index range [%g, %g]\n",
		c.KeyFrameCount(), c.CellCount(), c.VertexCount(), c.FaceCount(),
		c.MinIndex(), c.MaxIndex())

	if cfg.STLPath != "" {
		if err := tessellate.SaveSTL(c, cfg.STLPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing STL: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("STL: %s (%d triangles)\n", cfg.STLPath, len(tessellate.Soup(c)))
	}

	if cfg.PreviewPath != "" {
		opts := preview.DefaultOptions()
		opts.TileSize = cfg.TileSize
		opts.Supersample = cfg.Supersample
		if err := preview.Save(c, cfg.PreviewPath, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing preview: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Preview: %s (%d sections)\n", cfg.PreviewPath, c.KeyFrameCount())
	}
}

// buildFromScript evaluates a cage script file.
func buildFromScript(cfg config.Config) (*cage.BoundingCage, error) {
	src, err := os.ReadFile(cfg.Script)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	eng := engine.NewEngine()
	c, evalErrs, err := eng.Evaluate(string(src))
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", cfg.Script, err)
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			fmt.Fprintf(os.Stderr, "%s: %s\n", cfg.Script, e.Error())
		}
		return nil, fmt.Errorf("%d error(s) in %s", len(evalErrs), cfg.Script)
	}
	if c.KeyFrameCount() == 0 {
		return nil, fmt.Errorf("script %s built an empty cage", cfg.Script)
	}
	return c, nil
}

// buildFromPoints builds a cage directly from the configured skeleton
// points, a regular polygon template and optional splits.
func buildFromPoints(cfg config.Config) (*cage.BoundingCage, error) {
	pts, err := config.ParsePoints(cfg.Points)
	if err != nil {
		return nil, fmt.Errorf("parse points: %w", err)
	}

	template := []v2.Vec(sdf.Nagon(cfg.Sides, cfg.Radius))

	c := cage.New()
	if err := c.SetSkeletonVertices(pts, cfg.Smooth, template); err != nil {
		return nil, err
	}

	if cfg.Splits != "" {
		indexes, err := config.ParseSplits(cfg.Splits)
		if err != nil {
			return nil, fmt.Errorf("parse splits: %w", err)
		}
		for _, idx := range indexes {
			if _, err := c.Split(idx); err != nil {
				return nil, fmt.Errorf("split at %g: %w", idx, err)
			}
		}
	}
	return c, nil
}
