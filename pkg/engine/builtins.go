package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/quellen/tubecage/pkg/cage"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms cage script source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: move-point -> move_point
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a 3D vector so it can be passed between builtins.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %.1f %.1f %.1f)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpVec2 wraps a 2D cross-section point.
type sexpVec2 struct {
	vec v2.Vec
}

func (v *sexpVec2) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec2 %.1f %.1f)", v.vec.X, v.vec.Y)
}
func (v *sexpVec2) Type() *zygo.RegisteredType { return nil }

// sexpPolygon wraps a cross-section boundary polygon.
type sexpPolygon struct {
	pts []v2.Vec
}

func (p *sexpPolygon) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(polygon %d)", len(p.pts))
}
func (p *sexpPolygon) Type() *zygo.RegisteredType { return nil }

// sexpKeyFrame wraps a keyframe handle returned by split and keyframe-at.
type sexpKeyFrame struct {
	it cage.KeyFrameIterator
}

func (k *sexpKeyFrame) SexpString(ps *zygo.PrintState) string {
	if kf := k.it.KeyFrame(); kf != nil {
		return fmt.Sprintf("(keyframe %g)", kf.Index())
	}
	return "(keyframe stale)"
}
func (k *sexpKeyFrame) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an int from a SexpInt.
func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toBool extracts a bool from a SexpBool.
func toBool(s zygo.Sexp) (bool, error) {
	if v, ok := s.(*zygo.SexpBool); ok {
		return v.Val, nil
	}
	return false, fmt.Errorf("expected bool, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a 3D vector from a sexpVec3.
func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toVec2 extracts a 2D point from a sexpVec2.
func toVec2(s zygo.Sexp) (v2.Vec, error) {
	if v, ok := s.(*sexpVec2); ok {
		return v.vec, nil
	}
	return v2.Vec{}, fmt.Errorf("expected vec2, got %T (%s)", s, s.SexpString(nil))
}

// toKeyFrame extracts a keyframe handle from a sexpKeyFrame.
func toKeyFrame(s zygo.Sexp) (*sexpKeyFrame, error) {
	if k, ok := s.(*sexpKeyFrame); ok {
		return k, nil
	}
	return nil, fmt.Errorf("expected keyframe handle, got %T (%s)", s, s.SexpString(nil))
}

// toTemplate extracts a cross-section template from a polygon value or a
// list of vec2 points.
func toTemplate(s zygo.Sexp) ([]v2.Vec, error) {
	if p, ok := s.(*sexpPolygon); ok {
		return p.pts, nil
	}
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, fmt.Errorf("expected polygon or list of vec2: %w", err)
	}
	pts := make([]v2.Vec, 0, len(items))
	for i, item := range items {
		p, err := toVec2(item)
		if err != nil {
			return nil, fmt.Errorf("template vertex %d: %w", i, err)
		}
		pts = append(pts, p)
	}
	return pts, nil
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the cage DSL builtins into a zygomys environment.
// The builtins operate on the provided BoundingCage, mutating it during
// evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, c *cage.BoundingCage) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}

		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: y: %w", err)
		}
		z, err := toFloat64(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: z: %w", err)
		}

		return &sexpVec3{vec: v3.Vec{X: x, Y: y, Z: z}}, nil
	})

	// -----------------------------------------------------------------------
	// (vec2 1 2)
	// -----------------------------------------------------------------------
	env.AddFunction("vec2", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("vec2 requires exactly 2 arguments, got %d", len(args))
		}

		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec2: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec2: y: %w", err)
		}

		return &sexpVec2{vec: v2.Vec{X: x, Y: y}}, nil
	})

	// -----------------------------------------------------------------------
	// (polygon (vec2 1 0) (vec2 0 1) (vec2 -1 0))
	// -----------------------------------------------------------------------
	env.AddFunction("polygon", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 3 {
			return zygo.SexpNull, fmt.Errorf("polygon requires at least 3 vertices, got %d", len(args))
		}

		pts := make([]v2.Vec, 0, len(args))
		for i, a := range args {
			p, err := toVec2(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("polygon: vertex %d: %w", i, err)
			}
			pts = append(pts, p)
		}

		return &sexpPolygon{pts: pts}, nil
	})

	// -----------------------------------------------------------------------
	// (ngon :sides 6 :radius 40)
	// -----------------------------------------------------------------------
	env.AddFunction("ngon", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		sides := 0
		if v, ok := pa.kw["sides"]; ok {
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("ngon: sides: %w", err)
			}
			sides = n
		}
		if sides < 3 {
			return zygo.SexpNull, fmt.Errorf("ngon: sides must be at least 3, got %d", sides)
		}

		radius := 1.0
		if v, ok := pa.kw["radius"]; ok {
			r, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("ngon: radius: %w", err)
			}
			radius = r
		}
		if radius <= 0 {
			return zygo.SexpNull, fmt.Errorf("ngon: radius must be positive, got %g", radius)
		}

		return &sexpPolygon{pts: []v2.Vec(sdf.Nagon(sides, radius))}, nil
	})

	// -----------------------------------------------------------------------
	// (set-skeleton :points (list (vec3 ...) ...) :smoothing-iters 2
	//               :template (ngon :sides 6 :radius 40))
	// -----------------------------------------------------------------------
	env.AddFunction("set_skeleton", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		v, ok := pa.kw["points"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("set-skeleton: missing :points")
		}
		items, err := sexpListToSlice(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("set-skeleton: points: %w", err)
		}
		pts := make([]v3.Vec, 0, len(items))
		for i, item := range items {
			p, err := toVec3(item)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("set-skeleton: point %d: %w", i, err)
			}
			pts = append(pts, p)
		}

		iters := 0
		if v, ok := pa.kw["smoothing-iters"]; ok {
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("set-skeleton: smoothing-iters: %w", err)
			}
			iters = n
		}

		v, ok = pa.kw["template"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("set-skeleton: missing :template")
		}
		tmpl, err := toTemplate(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("set-skeleton: template: %w", err)
		}

		if err := c.SetSkeletonVertices(pts, iters, tmpl); err != nil {
			return zygo.SexpNull, fmt.Errorf("set-skeleton: %w", err)
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (split 2.5)
	// -----------------------------------------------------------------------
	env.AddFunction("split", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("split requires exactly 1 argument, got %d", len(args))
		}

		idx, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("split: index: %w", err)
		}

		it, err := c.Split(idx)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("split: %w", err)
		}
		return &sexpKeyFrame{it: it}, nil
	})

	// -----------------------------------------------------------------------
	// (keyframe-at 1.5)
	// -----------------------------------------------------------------------
	env.AddFunction("keyframe_at", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("keyframe-at requires exactly 1 argument, got %d", len(args))
		}

		idx, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("keyframe-at: index: %w", err)
		}

		it, err := c.KeyFrameForIndex(idx)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("keyframe-at: %w", err)
		}
		return &sexpKeyFrame{it: it}, nil
	})

	// -----------------------------------------------------------------------
	// (install kf)
	// -----------------------------------------------------------------------
	env.AddFunction("install", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("install requires exactly 1 argument, got %d", len(args))
		}

		kf, err := toKeyFrame(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("install: %w", err)
		}

		it, err := c.SplitKeyFrame(kf.it)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("install: %w", err)
		}
		return &sexpKeyFrame{it: it}, nil
	})

	// -----------------------------------------------------------------------
	// (move-point kf 0 (vec2 0.8 -0.8) :check-2d true :check-3d false)
	//
	// Returns true when the move was applied and false when it was rejected
	// for self-intersection, so scripts can react without aborting the run.
	// -----------------------------------------------------------------------
	env.AddFunction("move_point", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 3 {
			return zygo.SexpNull, fmt.Errorf("move-point requires a keyframe, a vertex index and a vec2")
		}

		kf, err := toKeyFrame(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("move-point: %w", err)
		}
		k := kf.it.KeyFrame()
		if k == nil {
			return zygo.SexpNull, fmt.Errorf("move-point: stale keyframe handle")
		}

		i, err := toInt(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("move-point: vertex index: %w", err)
		}
		pos, err := toVec2(pa.positional[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("move-point: position: %w", err)
		}

		var opts []cage.MoveOption
		if v, ok := pa.kw["check-2d"]; ok {
			b, err := toBool(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("move-point: check-2d: %w", err)
			}
			opts = append(opts, cage.Validate2D(b))
		}
		if v, ok := pa.kw["check-3d"]; ok {
			b, err := toBool(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("move-point: check-3d: %w", err)
			}
			opts = append(opts, cage.Validate3D(b))
		}

		if err := k.MovePoint2D(i, pos, opts...); err != nil {
			if errors.Is(err, cage.ErrSelfIntersecting2D) || errors.Is(err, cage.ErrSelfIntersecting3D) {
				return &zygo.SexpBool{Val: false}, nil
			}
			return zygo.SexpNull, fmt.Errorf("move-point: %w", err)
		}
		return &zygo.SexpBool{Val: true}, nil
	})

	// -----------------------------------------------------------------------
	// (keyframe-index kf)
	// -----------------------------------------------------------------------
	env.AddFunction("keyframe_index", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("keyframe-index requires exactly 1 argument, got %d", len(args))
		}

		kf, err := toKeyFrame(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("keyframe-index: %w", err)
		}
		k := kf.it.KeyFrame()
		if k == nil {
			return zygo.SexpNull, fmt.Errorf("keyframe-index: stale keyframe handle")
		}
		return &zygo.SexpFloat{Val: k.Index()}, nil
	})

	// -----------------------------------------------------------------------
	// (clear)
	// -----------------------------------------------------------------------
	env.AddFunction("clear", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		c.Clear()
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// Index range and count queries.
	// -----------------------------------------------------------------------
	env.AddFunction("min_index", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return &zygo.SexpFloat{Val: c.MinIndex()}, nil
	})
	env.AddFunction("max_index", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return &zygo.SexpFloat{Val: c.MaxIndex()}, nil
	})
	env.AddFunction("cell_count", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return &zygo.SexpInt{Val: int64(c.CellCount())}, nil
	})
	env.AddFunction("keyframe_count", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return &zygo.SexpInt{Val: int64(c.KeyFrameCount())}, nil
	})
	env.AddFunction("vertex_count", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return &zygo.SexpInt{Val: int64(c.VertexCount())}, nil
	})
	env.AddFunction("face_count", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return &zygo.SexpInt{Val: int64(c.FaceCount())}, nil
	})
}
