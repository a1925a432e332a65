// Package scene reads and writes the JSON scene documents exchanged with the
// host application. A document carries the target mesh being scored, the
// surrounding context geometry used as occluders, and root metadata keyed
// with "solar:" names.
package scene

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/solarworks/sunray/internal/geom"
)

// Metadata keys consumed and produced by the pipeline.
const (
	KeyParams       = "solar:params"
	KeyEPWFile      = "solar:epwFile"
	KeyResultsMin   = "solar:resultsMin"
	KeyResultsMax   = "solar:resultsMax"
	KeyResultsMean  = "solar:resultsMean"
	KeyResultsTotal = "solar:resultsTotal"
	KeyColormap     = "solar:colormap"
)

// Scene is the on-disk scene document.
type Scene struct {
	Metadata map[string]any `json:"metadata"`
	Target   *TargetMesh    `json:"target,omitempty"`
	Context  *ContextMesh   `json:"context,omitempty"`
}

// TargetMesh is the surface being scored: one center and one outward normal
// per face. SunHours and DisplayColor are only present on result documents.
type TargetMesh struct {
	FaceCenters  []geom.Vec3  `json:"faceCenters"`
	FaceNormals  []geom.Vec3  `json:"faceNormals"`
	SunHours     []float64    `json:"sunHours,omitempty"`
	DisplayColor [][3]float64 `json:"displayColor,omitempty"`
}

// ContextMesh is the indexed occluder geometry. Faces must be triangulated.
type ContextMesh struct {
	Points            []geom.Vec3 `json:"points"`
	FaceVertexCounts  []int       `json:"faceVertexCounts"`
	FaceVertexIndices []int       `json:"faceVertexIndices"`
}

// Read loads and structurally validates a scene document.
func Read(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open scene: %w", err)
	}
	var s Scene
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}

	if s.Target == nil {
		return nil, fmt.Errorf("scene has no target mesh")
	}
	n := len(s.Target.FaceCenters)
	if n == 0 {
		return nil, fmt.Errorf("target mesh has no faces")
	}
	if len(s.Target.FaceNormals) != n {
		return nil, fmt.Errorf("target mesh has %d centers but %d normals",
			n, len(s.Target.FaceNormals))
	}
	return &s, nil
}

// Write saves the document to path.
func (s *Scene) Write(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode scene: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write scene: %w", err)
	}
	return nil
}

// Params extracts and parses the solar:params metadata key.
func (s *Scene) Params() (Params, error) {
	raw, ok := s.Metadata[KeyParams].(string)
	if !ok || raw == "" {
		return Params{}, fmt.Errorf("scene metadata missing %s", KeyParams)
	}
	return ParseParams(raw)
}

// EPWFile extracts the solar:epwFile metadata key.
func (s *Scene) EPWFile() (string, error) {
	raw, ok := s.Metadata[KeyEPWFile].(string)
	if !ok || raw == "" {
		return "", fmt.Errorf("scene metadata missing %s", KeyEPWFile)
	}
	return raw, nil
}

// SetEPWFile rewrites the environment file reference. The server points it
// at the uploaded copy inside the job directory before processing starts.
func (s *Scene) SetEPWFile(path string) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	s.Metadata[KeyEPWFile] = path
}

// ContextTriangles flattens the indexed context mesh into a triangle list.
// A missing context mesh yields an empty list: an unobstructed scene is
// valid input. Non-triangular faces and out-of-range indices are rejected.
func (s *Scene) ContextTriangles() ([]geom.Triangle, error) {
	if s.Context == nil {
		return nil, nil
	}
	m := s.Context

	triangles := make([]geom.Triangle, 0, len(m.FaceVertexCounts))
	idx := 0
	for _, count := range m.FaceVertexCounts {
		if count != 3 {
			return nil, fmt.Errorf("context mesh: expected triangles, found face with %d vertices", count)
		}
		if idx+3 > len(m.FaceVertexIndices) {
			return nil, fmt.Errorf("context mesh: face index array truncated")
		}
		var t geom.Triangle
		for j := 0; j < 3; j++ {
			vi := m.FaceVertexIndices[idx+j]
			if vi < 0 || vi >= len(m.Points) {
				return nil, fmt.Errorf("context mesh: vertex index %d out of range", vi)
			}
			t[j] = m.Points[vi]
		}
		triangles = append(triangles, t)
		idx += 3
	}
	return triangles, nil
}

// ResultStats are the summary statistics written to the result document.
type ResultStats struct {
	Min   float64
	Max   float64
	Mean  float64
	Total float64
}

// WriteResults writes the structured result document: the input scene with
// the context geometry removed, per-face sun hours and display colors on the
// target mesh, and summary statistics in the root metadata.
func WriteResults(inPath, outPath string, results []float64, colors [][3]float64, stats ResultStats, colormap string) error {
	s, err := Read(inPath)
	if err != nil {
		return err
	}
	if len(results) != len(s.Target.FaceCenters) {
		return fmt.Errorf("result count %d does not match face count %d",
			len(results), len(s.Target.FaceCenters))
	}

	s.Context = nil
	s.Target.SunHours = results
	s.Target.DisplayColor = colors

	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	s.Metadata[KeyResultsMin] = stats.Min
	s.Metadata[KeyResultsMax] = stats.Max
	s.Metadata[KeyResultsMean] = stats.Mean
	s.Metadata[KeyResultsTotal] = stats.Total
	s.Metadata[KeyColormap] = colormap

	return s.Write(outPath)
}

// WriteCSV writes the flat tabular output: one scalar per line, in face
// order.
func WriteCSV(path string, results []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	for _, v := range results {
		if _, err := f.WriteString(strconv.FormatFloat(v, 'g', -1, 64) + "\n"); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	return nil
}
