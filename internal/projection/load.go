package projection

import (
	"errors"
	"fmt"
	"io"
	"math"

	geojson "github.com/paulmach/go.geojson"

	"github.com/banshee-data/vismag/internal/viewshed"
)

// ErrUnsupportedGeometry is returned for features that are neither points
// nor lines.
var ErrUnsupportedGeometry = errors.New("unsupported viewpoint geometry")

// Property keys read from each feature.
const (
	PropertyOffset = "offset"
	PropertyWeight = "weight"
)

// Options control how features become viewpoints.
type Options struct {
	// DefaultOffset is the observer height for features without an offset
	// property.
	DefaultOffset float64
	// LineInterval is the densification step along lines, in map units.
	LineInterval float64
}

// Result holds the projected viewpoints in first-seen order.
type Result struct {
	Viewpoints []viewshed.Viewpoint
	// Invalid counts samples that fell outside the grid.
	Invalid int
	// Features is the number of features read.
	Features int
}

type projector struct {
	ref    Georef
	opts   Options
	seen   map[[2]int]bool
	result *Result
}

// Load reads a GeoJSON FeatureCollection and projects every feature onto
// the grid described by ref. Points become one viewpoint each; lines are
// split into equal steps no shorter than opts.LineInterval with their
// vertices always included. Each pixel yields at most one viewpoint.
func Load(r io.Reader, ref Georef, opts Options) (*Result, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if !(opts.LineInterval > 0) {
		return nil, fmt.Errorf("line interval must be positive, got %v", opts.LineInterval)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read viewpoints: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse viewpoints: %w", err)
	}

	p := &projector{ref: ref, opts: opts, seen: make(map[[2]int]bool), result: &Result{}}
	for i, f := range fc.Features {
		if err := p.feature(f); err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		p.result.Features++
	}
	return p.result, nil
}

func (p *projector) feature(f *geojson.Feature) error {
	if f == nil || f.Geometry == nil {
		return fmt.Errorf("%w: missing geometry", ErrUnsupportedGeometry)
	}
	offset, err := floatProperty(f, PropertyOffset, p.opts.DefaultOffset)
	if err != nil {
		return err
	}
	weight, err := floatProperty(f, PropertyWeight, 1)
	if err != nil {
		return err
	}

	g := f.Geometry
	switch g.Type {
	case geojson.GeometryPoint:
		p.point(g.Point, offset, weight)
	case geojson.GeometryMultiPoint:
		for _, pt := range g.MultiPoint {
			p.point(pt, offset, weight)
		}
	case geojson.GeometryLineString:
		p.line(g.LineString, offset, weight)
	case geojson.GeometryMultiLineString:
		for _, ls := range g.MultiLineString {
			p.line(ls, offset, weight)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.Type)
	}
	return nil
}

func floatProperty(f *geojson.Feature, key string, def float64) (float64, error) {
	v, ok := f.Properties[key]
	if !ok || v == nil {
		return def, nil
	}
	n, ok := v.(float64)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("property %q must be a number, got %v", key, v)
	}
	return n, nil
}

func (p *projector) point(coord []float64, offset, weight float64) {
	if len(coord) < 2 {
		p.result.Invalid++
		return
	}
	p.add(coord[0], coord[1], offset, weight)
}

// line samples every segment from its start vertex in floor(length /
// LineInterval) equal steps, so spacing is at least LineInterval and under
// twice it. The final vertex is always added.
func (p *projector) line(coords [][]float64, offset, weight float64) {
	var prev []float64
	for _, c := range coords {
		if len(c) < 2 {
			p.result.Invalid++
			continue
		}
		if prev != nil {
			p.segment(prev, c, offset, weight)
		}
		prev = c
	}
	if prev != nil {
		p.add(prev[0], prev[1], offset, weight)
	}
}

func (p *projector) segment(from, to []float64, offset, weight float64) {
	dx, dy := to[0]-from[0], to[1]-from[1]
	steps := int(math.Floor(math.Hypot(dx, dy) / p.opts.LineInterval))
	if steps < 1 {
		p.add(from[0], from[1], offset, weight)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		p.add(from[0]+dx*t, from[1]+dy*t, offset, weight)
	}
}

func (p *projector) add(x, y, offset, weight float64) {
	row, col := p.ref.MapToPixel(x, y)
	if row < 0 || col < 0 {
		p.result.Invalid++
		return
	}
	key := [2]int{row, col}
	if p.seen[key] {
		return
	}
	p.seen[key] = true
	p.result.Viewpoints = append(p.result.Viewpoints, viewshed.Viewpoint{
		Row:             row,
		Col:             col,
		ElevationOffset: offset,
		Weight:          weight,
	})
}
