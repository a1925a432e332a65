// Package raytrace is the built-in CPU compute backend. It scores each
// target face by casting one ray per sun direction from just above the face
// toward the sun and counting the unobstructed samples.
package raytrace

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/solarworks/sunray/internal/geom"
)

// Engine is the CPU ray tracer. Zero value is usable; Workers defaults to
// GOMAXPROCS.
type Engine struct {
	Workers int
}

func New() *Engine {
	return &Engine{}
}

func (e *Engine) Name() string { return "raytrace" }

// Analyze returns one scalar per target face: the number of sun directions
// from which the face is lit. A face is lit by a direction when the
// direction faces the front of the face and no context triangle blocks the
// ray from the offset origin toward the sun.
func (e *Engine) Analyze(ctx context.Context,
	centers, normals []geom.Vec3,
	triangles []geom.Triangle,
	vectors []geom.Vec3,
	offset float64) ([]float64, error) {

	if len(centers) != len(normals) {
		return nil, fmt.Errorf("raytrace: %d centers but %d normals", len(centers), len(normals))
	}

	results := make([]float64, len(centers))
	if len(vectors) == 0 {
		return results, nil
	}

	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	chunk := (len(centers) + workers - 1) / workers
	for lo := 0; lo < len(centers); lo += chunk {
		hi := lo + chunk
		if hi > len(centers) {
			hi = len(centers)
		}
		lo, hi := lo, hi
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				results[i] = scoreFace(centers[i], normals[i], triangles, vectors, offset)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("raytrace: %w", err)
	}
	return results, nil
}

func scoreFace(center, normal geom.Vec3, triangles []geom.Triangle, vectors []geom.Vec3, offset float64) float64 {
	origin := center.Add(normal.Scale(offset))

	var hours float64
	for _, sunDir := range vectors {
		// sunDir points from the sun toward the ground; the ray travels the
		// other way.
		toSun := sunDir.Neg()
		if normal.Dot(toSun) <= 0 {
			continue
		}
		if occluded(origin, toSun, triangles) {
			continue
		}
		hours++
	}
	return hours
}

func occluded(origin, dir geom.Vec3, triangles []geom.Triangle) bool {
	for _, t := range triangles {
		if hit, _ := intersect(origin, dir, t); hit {
			return true
		}
	}
	return false
}

const epsilon = 1e-9

// intersect is the Möller–Trumbore ray/triangle test. Only intersections in
// front of the origin count.
func intersect(origin, dir geom.Vec3, t geom.Triangle) (bool, float64) {
	edge1 := t[1].Sub(t[0])
	edge2 := t[2].Sub(t[0])

	p := dir.Cross(edge2)
	det := edge1.Dot(p)
	if det > -epsilon && det < epsilon {
		return false, 0
	}
	invDet := 1 / det

	s := origin.Sub(t[0])
	u := s.Dot(p) * invDet
	if u < 0 || u > 1 {
		return false, 0
	}

	q := s.Cross(edge1)
	v := dir.Dot(q) * invDet
	if v < 0 || u+v > 1 {
		return false, 0
	}

	dist := edge2.Dot(q) * invDet
	if dist <= epsilon {
		return false, 0
	}
	return true, dist
}
