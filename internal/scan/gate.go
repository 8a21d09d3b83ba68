package scan

import (
	"time"

	"github.com/Azure-Framework/Az-Opticom/internal/geo"
)

// Gate is the hysteresis policy bounding how often Find may run. It keeps a
// snapshot of where and when the last heavy scan happened; a new scan is
// authorized only after the vehicle has moved or turned enough, and never
// more often than the minimum interval. The gate belongs to a single
// controller goroutine and is not safe for concurrent use.
type Gate struct {
	minInterval   time.Duration
	rescanDistSq  float64
	rescanHeading float64

	hasSnapshot bool
	lastPos     geo.Position
	lastHeading float64
	lastScan    time.Time
}

// NewGate creates a Gate with no recorded scan, so the first ShouldScan is
// always true.
func NewGate(minInterval time.Duration, rescanDistance, rescanHeading float64) *Gate {
	return &Gate{
		minInterval:   minInterval,
		rescanDistSq:  rescanDistance * rescanDistance,
		rescanHeading: rescanHeading,
	}
}

// ShouldScan reports whether a heavy scan may run now. Cold start always
// scans. The minimum interval is a hard floor regardless of movement; past
// it, either displacement or heading change at or above threshold (boundary
// inclusive) authorizes a scan.
func (g *Gate) ShouldScan(pos geo.Position, heading float64, now time.Time) bool {
	if !g.hasSnapshot {
		return true
	}
	if now.Sub(g.lastScan) < g.minInterval {
		return false
	}
	if geo.DistSq(pos, g.lastPos) >= g.rescanDistSq {
		return true
	}
	return geo.AngleDiff(heading, g.lastHeading) >= g.rescanHeading
}

// MarkScanned records that a heavy scan ran at the given pose. Called once
// per scan attempt, hit or miss.
func (g *Gate) MarkScanned(pos geo.Position, heading float64, now time.Time) {
	g.hasSnapshot = true
	g.lastPos = pos
	g.lastHeading = heading
	g.lastScan = now
}

// Invalidate drops the snapshot. The controller calls this when the siren
// cycles off and on, since the recorded pose no longer reflects the current
// approach.
func (g *Gate) Invalidate() {
	g.hasSnapshot = false
}
