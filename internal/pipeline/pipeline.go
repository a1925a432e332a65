// Package pipeline orchestrates a single analysis run: scene in, scored and
// colored result documents out.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/solarworks/sunray/internal/engine"
	"github.com/solarworks/sunray/internal/geom"
	"github.com/solarworks/sunray/internal/scene"
)

// VectorProvider turns an environment file and period parameters into the
// ordered sun direction sequence. sun.Vectors is the production
// implementation; tests substitute their own.
type VectorProvider func(epwPath string, p scene.Params) ([]geom.Vec3, error)

// Pipeline runs the full analysis for one scene file.
type Pipeline struct {
	engine   engine.Engine
	vectors  VectorProvider
	colormap string
}

// Output names written into the job directory.
const (
	ResultSceneName = "result.json"
	ResultCSVName   = "result.csv"
)

func New(eng engine.Engine, vectors VectorProvider, colormap string) *Pipeline {
	if colormap == "" {
		colormap = DefaultColormap
	}
	return &Pipeline{engine: eng, vectors: vectors, colormap: colormap}
}

// Result describes a completed run.
type Result struct {
	ScenePath string
	CSVPath   string
	Values    []float64
	Stats     Stats
}

// Run executes the stages in order: read, fetch vectors, validate, compute,
// post-process, write. outDir receives both output artifacts.
func (p *Pipeline) Run(ctx context.Context, scenePath, outDir string) (*Result, error) {
	s, err := scene.Read(scenePath)
	if err != nil {
		return nil, &SceneReadError{Err: err}
	}
	params, err := s.Params()
	if err != nil {
		return nil, &SceneReadError{Err: err}
	}
	epwPath, err := s.EPWFile()
	if err != nil {
		return nil, &SceneReadError{Err: err}
	}
	if _, err := os.Stat(epwPath); err != nil {
		return nil, &SceneReadError{Err: fmt.Errorf("environment file %s: %w", epwPath, err)}
	}

	centers := s.Target.FaceCenters
	normals := s.Target.FaceNormals
	triangles, err := s.ContextTriangles()
	if err != nil {
		return nil, &SceneReadError{Err: err}
	}

	vectors, err := p.vectors(epwPath, params)
	if err != nil {
		return nil, &SceneReadError{Err: fmt.Errorf("sun vectors: %w", err)}
	}
	log.Debug().
		Int("faces", len(centers)).
		Int("triangles", len(triangles)).
		Int("sun_vectors", len(vectors)).
		Float64("offset", params.Offset).
		Msg("analysis input")

	if err := validate(centers, normals, triangles, vectors); err != nil {
		return nil, err
	}

	start := time.Now()
	values, err := p.engine.Analyze(ctx, centers, normals, triangles, vectors, params.Offset)
	if err != nil {
		return nil, &EngineError{Engine: p.engine.Name(), Err: err}
	}
	if len(values) != len(centers) {
		return nil, &EngineError{
			Engine: p.engine.Name(),
			Err:    fmt.Errorf("returned %d values for %d faces", len(values), len(centers)),
		}
	}

	stats := Summarize(values)
	colors := Colors(values, p.colormap)
	log.Info().
		Dur("elapsed", time.Since(start)).
		Float64("total", stats.Total).
		Float64("mean", stats.Mean).
		Float64("max", stats.Max).
		Int("faces_lit", stats.NonZero).
		Msg("analysis complete")

	outScene := filepath.Join(outDir, ResultSceneName)
	outCSV := filepath.Join(outDir, ResultCSVName)
	if err := scene.WriteResults(scenePath, outScene, values, colors, scene.ResultStats{
		Min:   stats.Min,
		Max:   stats.Max,
		Mean:  stats.Mean,
		Total: stats.Total,
	}, p.colormap); err != nil {
		return nil, fmt.Errorf("write results: %w", err)
	}
	if err := scene.WriteCSV(outCSV, values); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}

	return &Result{
		ScenePath: outScene,
		CSVPath:   outCSV,
		Values:    values,
		Stats:     stats,
	}, nil
}

// validate rejects any input array carrying NaN or Inf values. The error
// names the first offending array, in input order.
func validate(centers, normals []geom.Vec3, triangles []geom.Triangle, vectors []geom.Vec3) error {
	if !geom.AllFinite(centers) {
		return &ValidationError{Array: "face_centers"}
	}
	if !geom.AllFinite(normals) {
		return &ValidationError{Array: "face_normals"}
	}
	if !geom.TrianglesFinite(triangles) {
		return &ValidationError{Array: "scene_triangles"}
	}
	if !geom.AllFinite(vectors) {
		return &ValidationError{Array: "sun_vectors"}
	}
	return nil
}
