// Package scan locates the controllable signal ahead of an emergency vehicle
// and decides when that search is allowed to run. Find is the expensive path
// (one world query per probe distance per kind); StillRelevant is the O(1)
// check the controller always tries first.
package scan

import (
	"github.com/Azure-Framework/Az-Opticom/internal/geo"
	"github.com/Azure-Framework/Az-Opticom/internal/world"
)

// Params holds the search tunables. All distances are world meters, angles
// degrees.
type Params struct {
	StepSize         float64
	MinDistance      float64
	MaxDistance      float64
	SearchRadius     float64
	HeadingThreshold float64
	Kinds            []world.Kind
}

// Searcher probes the forward axis of a vehicle for signal objects.
type Searcher struct {
	w world.World
	p Params
}

// NewSearcher creates a Searcher over the given world.
func NewSearcher(w world.World, p Params) *Searcher {
	return &Searcher{w: w, p: p}
}

// Find runs the heavy scan: probe points from MaxDistance down to MinDistance
// in StepSize decrements, querying each configured kind at every probe point.
// The first aligned hit wins, so scanning far-to-near prefers the signal at
// the approaching intersection over nearer clutter. The descending order is a
// contract, not an optimization.
//
// Returns world.None when no probe distance yields an aligned candidate.
func (s *Searcher) Find(pos geo.Position, heading float64) (world.Handle, world.Kind) {
	for dist := s.p.MaxDistance; dist >= s.p.MinDistance; dist -= s.p.StepSize {
		probe := geo.ProjectForward(pos, heading, dist)
		for _, kind := range s.p.Kinds {
			h := s.w.NearestOfKind(kind, probe, s.p.SearchRadius)
			if h == world.None {
				continue
			}
			objHeading, ok := s.w.Heading(h)
			if !ok {
				continue
			}
			if geo.AngleDiff(objHeading, heading) < s.p.HeadingThreshold {
				return h, kind
			}
		}
	}
	return world.None, ""
}

// StillRelevant reports whether a previously found signal is still the one
// ahead of the vehicle: it must exist, lie within the configured distance
// band, and face within the heading threshold. Costs one position and one
// heading fetch, so the controller runs it every tick.
func (s *Searcher) StillRelevant(h world.Handle, pos geo.Position, heading float64) bool {
	if h == world.None {
		return false
	}
	if !s.w.Exists(h) {
		return false
	}
	lightPos, ok := s.w.Position(h)
	if !ok {
		return false
	}
	distSq := geo.DistSq(lightPos, pos)
	if distSq < s.p.MinDistance*s.p.MinDistance || distSq > s.p.MaxDistance*s.p.MaxDistance {
		return false
	}
	lightHeading, ok := s.w.Heading(h)
	if !ok {
		return false
	}
	return geo.AngleDiff(lightHeading, heading) < s.p.HeadingThreshold
}
