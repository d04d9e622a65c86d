// Package routing resolves road geometry between two points. A real
// OpenRouteService client serves production; any failure is substituted
// with a deterministic synthetic path so the gateway never fails solely
// because the routing collaborator is unreachable.
package routing

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"fieldops-gateway/internal/geo"
	"fieldops-gateway/internal/metrics"
)

// Point is one route vertex.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PathResolver turns a start/end pair into an ordered point sequence.
type PathResolver interface {
	ResolvePath(ctx context.Context, start, end Point) ([]Point, error)
}

// Synthetic interpolates a straight path between the endpoints, one point
// roughly every stepKm kilometres. It is fully deterministic and never
// fails, which makes it both the production fallback and the test resolver.
type Synthetic struct {
	StepKm float64
}

const (
	defaultStepKm  = 0.5
	maxSyntheticPts = 200
)

// ResolvePath implements PathResolver.
func (s Synthetic) ResolvePath(_ context.Context, start, end Point) ([]Point, error) {
	step := s.StepKm
	if step <= 0 {
		step = defaultStepKm
	}
	dist := geo.HaversineKm(start.Lat, start.Lon, end.Lat, end.Lon)
	segments := int(math.Ceil(dist / step))
	if segments < 1 {
		segments = 1
	}
	if segments > maxSyntheticPts-1 {
		segments = maxSyntheticPts - 1
	}

	pts := make([]Point, 0, segments+1)
	for i := 0; i <= segments; i++ {
		t := float64(i) / float64(segments)
		pts = append(pts, Point{
			Lat: start.Lat + (end.Lat-start.Lat)*t,
			Lon: start.Lon + (end.Lon-start.Lon)*t,
		})
	}
	return pts, nil
}

// Fallback tries the primary resolver and silently substitutes the
// secondary when the primary errors or returns nothing.
type Fallback struct {
	primary   PathResolver
	secondary PathResolver
	log       zerolog.Logger
}

// NewFallback composes a primary resolver with a deterministic secondary.
func NewFallback(primary, secondary PathResolver, log zerolog.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, log: log}
}

// ResolvePath implements PathResolver.
func (f *Fallback) ResolvePath(ctx context.Context, start, end Point) ([]Point, error) {
	if f.primary != nil {
		pts, err := f.primary.ResolvePath(ctx, start, end)
		if err == nil && len(pts) > 0 {
			return pts, nil
		}
		if err != nil {
			f.log.Warn().Err(err).Msg("route lookup failed, using synthetic path")
		}
		metrics.RouteFallbacks.Inc()
	}
	return f.secondary.ResolvePath(ctx, start, end)
}
