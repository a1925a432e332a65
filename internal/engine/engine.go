// Package engine defines the pluggable compute backend contract. The
// pipeline talks to backends only through the Engine interface; the concrete
// backend is selected by configuration.
package engine

import (
	"context"

	"github.com/solarworks/sunray/internal/geom"
)

// Engine is a ray-based analysis backend. Analyze scores every target face:
// it returns exactly one scalar (sun hours) per entry of centers, in order.
//
// centers and normals describe the target faces (same length), triangles is
// the occluding context geometry, vectors are unit directions pointing from
// the sun toward the ground, and offset is the distance each ray origin is
// pushed along the face normal to avoid self-intersection.
type Engine interface {
	Name() string
	Analyze(ctx context.Context,
		centers, normals []geom.Vec3,
		triangles []geom.Triangle,
		vectors []geom.Vec3,
		offset float64) ([]float64, error)
}
